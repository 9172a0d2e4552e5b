package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLProfile      = 7 * 24 * time.Hour // Company name and industry rarely change
	TTLCurrentPrice = 10 * time.Minute
)
