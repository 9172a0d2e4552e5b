package universe

import "time"

// DefaultStalenessThreshold is how old a holding's price copy may get before a read refreshes it.
const DefaultStalenessThreshold = 15 * time.Minute

// NeedsRefresh reports whether a price last updated at lastUpdated is stale at now.
// A nil lastUpdated (never synced) is always stale. An age of exactly threshold is not.
func NeedsRefresh(lastUpdated *time.Time, now time.Time, threshold time.Duration) bool {
	if lastUpdated == nil {
		return true
	}
	return now.Sub(*lastUpdated) > threshold
}
