package universe

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

const instrumentColumns = `id, symbol, company_name, industry, reference_price, current_price, last_updated, is_active`

// InstrumentRepository handles instrument database operations.
// Instruments are never hard-deleted; SetActive(false) hides them from sync.
type InstrumentRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *sql.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		db:  db,
		log: log.With().Str("repo", "instrument").Logger(),
	}
}

// Create inserts a new instrument and returns its id.
// A duplicate symbol (case-insensitive) returns domain.ErrAlreadyExists.
func (r *InstrumentRepository) Create(ctx context.Context, inst *domain.Instrument) (int64, error) {
	symbol := domain.NormalizeSymbol(inst.Symbol)
	if symbol == "" {
		return 0, fmt.Errorf("instrument symbol is required")
	}

	var currentPrice sql.NullString
	if inst.CurrentPrice.Valid {
		currentPrice = sql.NullString{String: inst.CurrentPrice.Decimal.String(), Valid: true}
	}
	var lastUpdated sql.NullInt64
	if inst.LastUpdated != nil {
		lastUpdated = sql.NullInt64{Int64: inst.LastUpdated.Unix(), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO instruments
			(symbol, company_name, industry, reference_price, current_price, last_updated, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		symbol,
		inst.CompanyName,
		inst.Industry,
		inst.ReferencePrice.String(),
		currentPrice,
		lastUpdated,
		boolToInt(inst.IsActive),
		time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("instrument %s: %w", symbol, domain.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create instrument %s: %w", symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get instrument id: %w", err)
	}

	inst.ID = id
	inst.Symbol = symbol

	r.log.Info().Str("symbol", symbol).Int64("id", id).Msg("Instrument created")
	return id, nil
}

// GetBySymbol returns the instrument with symbol (case-insensitive), active or not.
func (r *InstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+instrumentColumns+" FROM instruments WHERE symbol = ? COLLATE NOCASE",
		domain.NormalizeSymbol(symbol),
	)
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instrument %s: %w", domain.NormalizeSymbol(symbol), domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// GetByID returns the instrument with id.
func (r *InstrumentRepository) GetByID(ctx context.Context, id int64) (*domain.Instrument, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+instrumentColumns+" FROM instruments WHERE id = ?", id)
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instrument %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %d: %w", id, err)
	}
	return inst, nil
}

// List returns instruments ordered by id.
func (r *InstrumentRepository) List(ctx context.Context, activeOnly bool) ([]domain.Instrument, error) {
	query := "SELECT " + instrumentColumns + " FROM instruments"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return instruments, nil
}

// UpdatePrice sets the instrument's current price and last update time.
func (r *InstrumentRepository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE instruments SET current_price = ?, last_updated = ? WHERE id = ?",
		price.String(), at.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update price for instrument %d: %w", id, err)
	}
	return requireRow(result, fmt.Sprintf("instrument %d", id))
}

// SetActive activates or soft-deletes an instrument.
func (r *InstrumentRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE instruments SET is_active = ? WHERE id = ?",
		boolToInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set active=%t for instrument %d: %w", active, id, err)
	}
	return requireRow(result, fmt.Sprintf("instrument %d", id))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstrument(row rowScanner) (*domain.Instrument, error) {
	var (
		inst           domain.Instrument
		referencePrice string
		currentPrice   sql.NullString
		lastUpdated    sql.NullInt64
		isActive       int
	)

	err := row.Scan(
		&inst.ID,
		&inst.Symbol,
		&inst.CompanyName,
		&inst.Industry,
		&referencePrice,
		&currentPrice,
		&lastUpdated,
		&isActive,
	)
	if err != nil {
		return nil, err
	}

	inst.ReferencePrice, err = decimal.NewFromString(referencePrice)
	if err != nil {
		return nil, fmt.Errorf("invalid reference_price %q: %w", referencePrice, err)
	}
	inst.CurrentPrice, err = parseNullDecimal(currentPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid current_price %q: %w", currentPrice.String, err)
	}
	inst.LastUpdated = unixPtr(lastUpdated)
	inst.IsActive = isActive != 0

	return &inst, nil
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid || s.String == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func requireRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
