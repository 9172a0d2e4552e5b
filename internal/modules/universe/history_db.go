package universe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// Last write wins: a second write for the same (instrument_id, date) overwrites OHLCV in place.
const upsertBarSQL = `
	INSERT INTO price_bars (instrument_id, date, open, high, low, close, volume, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(instrument_id, date) DO UPDATE SET
		open = excluded.open,
		high = excluded.high,
		low = excluded.low,
		close = excluded.close,
		volume = excluded.volume
`

// HistoryDB provides access to daily price history
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// Upsert writes one bar. The date is truncated to UTC midnight.
func (h *HistoryDB) Upsert(ctx context.Context, bar domain.PriceBar) error {
	if _, err := h.db.ExecContext(ctx, upsertBarSQL, barArgs(bar)...); err != nil {
		return fmt.Errorf("failed to upsert bar for instrument %d on %s: %w",
			bar.InstrumentID, domain.TruncateToDay(bar.Date).Format("2006-01-02"), err)
	}
	return nil
}

// UpsertMany writes bars in a single transaction.
func (h *HistoryDB) UpsertMany(ctx context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertBarSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, bar := range bars {
			if _, err := stmt.ExecContext(ctx, barArgs(bar)...); err != nil {
				return fmt.Errorf("failed to upsert bar for instrument %d on %s: %w",
					bar.InstrumentID, domain.TruncateToDay(bar.Date).Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Debug().
		Int64("instrument_id", bars[0].InstrumentID).
		Int("count", len(bars)).
		Msg("Upserted price bars")

	return nil
}

// Range returns bars with from <= date <= to (by calendar day), ascending by date.
func (h *HistoryDB) Range(ctx context.Context, instrumentID int64, from, to time.Time) ([]domain.PriceBar, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT instrument_id, date, open, high, low, close, volume
		FROM price_bars
		WHERE instrument_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, instrumentID, domain.TruncateToDay(from).Unix(), domain.TruncateToDay(to).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	bars := []domain.PriceBar{}
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, *bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price bars: %w", err)
	}

	return bars, nil
}

// Latest returns the most recent bar for an instrument.
func (h *HistoryDB) Latest(ctx context.Context, instrumentID int64) (*domain.PriceBar, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT instrument_id, date, open, high, low, close, volume
		FROM price_bars
		WHERE instrument_id = ?
		ORDER BY date DESC
		LIMIT 1
	`, instrumentID)

	bar, err := scanBar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("price history for instrument %d: %w", instrumentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return bar, nil
}

func barArgs(bar domain.PriceBar) []interface{} {
	return []interface{}{
		bar.InstrumentID,
		domain.TruncateToDay(bar.Date).Unix(),
		bar.Open.String(),
		bar.High.String(),
		bar.Low.String(),
		bar.Close.String(),
		bar.Volume,
		time.Now().Unix(),
	}
}

func scanBar(row rowScanner) (*domain.PriceBar, error) {
	var (
		bar                         domain.PriceBar
		date                        int64
		open, high, low, closePrice string
	)

	if err := row.Scan(&bar.InstrumentID, &date, &open, &high, &low, &closePrice, &bar.Volume); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan price bar: %w", err)
	}

	bar.Date = time.Unix(date, 0).UTC()

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&bar.Open, open}, {&bar.High, high}, {&bar.Low, low}, {&bar.Close, closePrice},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("invalid price %q in bar: %w", f.src, err)
		}
	}

	return &bar, nil
}
