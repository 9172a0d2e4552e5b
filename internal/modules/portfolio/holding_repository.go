package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// Holdings joined with their instrument's directory data.
const holdingSelect = `
	SELECT h.id, h.owner_id, h.instrument_id, i.symbol, i.company_name, i.industry,
		h.quantity, h.purchase_price, h.purchase_date, h.current_price, h.last_updated
	FROM holdings h
	JOIN instruments i ON i.id = h.instrument_id`

// HoldingRepository handles holding database operations.
// It also receives propagated instrument prices from price sync.
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// Create inserts a holding. Its price copy starts from the instrument's current
// price so a new holding is valued immediately.
// Returns domain.ErrNotFound for an unknown instrument and domain.ErrAlreadyExists
// when the owner already holds it.
func (r *HoldingRepository) Create(ctx context.Context, h *domain.Holding) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings
			(owner_id, instrument_id, quantity, purchase_price, purchase_date, current_price, last_updated, created_at)
		SELECT ?, i.id, ?, ?, ?, i.current_price, i.last_updated, ?
		FROM instruments i
		WHERE i.id = ?
	`,
		h.OwnerID,
		h.Quantity.String(),
		h.PurchasePrice.String(),
		h.PurchaseDate.Unix(),
		time.Now().Unix(),
		h.InstrumentID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("holding of instrument %d for %s: %w", h.InstrumentID, h.OwnerID, domain.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create holding: %w", err)
	}

	if n, err := result.RowsAffected(); err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return 0, fmt.Errorf("instrument %d: %w", h.InstrumentID, domain.ErrNotFound)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get holding id: %w", err)
	}
	h.ID = id

	r.log.Info().
		Str("owner_id", h.OwnerID).
		Int64("instrument_id", h.InstrumentID).
		Str("quantity", h.Quantity.String()).
		Msg("Holding created")

	return id, nil
}

// GetByOwner returns the owner's holdings ordered by id.
func (r *HoldingRepository) GetByOwner(ctx context.Context, ownerID string) ([]domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx, holdingSelect+" WHERE h.owner_id = ? ORDER BY h.id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []domain.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// GetByOwnerAndInstrument returns one holding.
func (r *HoldingRepository) GetByOwnerAndInstrument(ctx context.Context, ownerID string, instrumentID int64) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx, holdingSelect+" WHERE h.owner_id = ? AND h.instrument_id = ?", ownerID, instrumentID)

	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("holding of instrument %d for %s: %w", instrumentID, ownerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

// Update changes the owner-editable fields of a holding.
func (r *HoldingRepository) Update(ctx context.Context, ownerID string, instrumentID int64, quantity, purchasePrice decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE holdings SET quantity = ?, purchase_price = ? WHERE owner_id = ? AND instrument_id = ?",
		quantity.String(), purchasePrice.String(), ownerID, instrumentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	return requireRow(result, ownerID, instrumentID)
}

// Delete removes a holding.
func (r *HoldingRepository) Delete(ctx context.Context, ownerID string, instrumentID int64) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM holdings WHERE owner_id = ? AND instrument_id = ?",
		ownerID, instrumentID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return requireRow(result, ownerID, instrumentID)
}

// UpdatePriceForInstrument copies a freshly synced instrument price onto every
// holding of that instrument and returns how many rows were updated.
func (r *HoldingRepository) UpdatePriceForInstrument(ctx context.Context, instrumentID int64, price decimal.Decimal, at time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE holdings SET current_price = ?, last_updated = ? WHERE instrument_id = ?",
		price.String(), at.Unix(), instrumentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update holding prices for instrument %d: %w", instrumentID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (*domain.Holding, error) {
	var (
		h             domain.Holding
		quantity      string
		purchasePrice string
		purchaseDate  int64
		currentPrice  sql.NullString
		lastUpdated   sql.NullInt64
	)

	err := row.Scan(
		&h.ID,
		&h.OwnerID,
		&h.InstrumentID,
		&h.Symbol,
		&h.CompanyName,
		&h.Industry,
		&quantity,
		&purchasePrice,
		&purchaseDate,
		&currentPrice,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if h.PurchasePrice, err = decimal.NewFromString(purchasePrice); err != nil {
		return nil, fmt.Errorf("invalid purchase_price %q: %w", purchasePrice, err)
	}
	if currentPrice.Valid && currentPrice.String != "" {
		d, err := decimal.NewFromString(currentPrice.String)
		if err != nil {
			return nil, fmt.Errorf("invalid current_price %q: %w", currentPrice.String, err)
		}
		h.CurrentPrice = decimal.NewNullDecimal(d)
	}
	h.PurchaseDate = time.Unix(purchaseDate, 0).UTC()
	if lastUpdated.Valid {
		t := time.Unix(lastUpdated.Int64, 0).UTC()
		h.LastUpdated = &t
	}

	return &h, nil
}

func requireRow(result sql.Result, ownerID string, instrumentID int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("holding of instrument %d for %s: %w", instrumentID, ownerID, domain.ErrNotFound)
	}
	return nil
}
