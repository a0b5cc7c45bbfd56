// Package postgres implements paper.Repository against a pgxpool-backed
// Postgres store, in the style of the teacher's internal/repositories
// package (plain $-placeholder SQL, wrapped errors, no ORM).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/google/uuid"

	"github.com/tradecore/engine/internal/domain"
)

// Repository implements paper.Repository against the schema created by
// the migrations under persistence/postgres/migrations.
type Repository struct {
	db *pgxpool.Pool
}

// New constructs a Repository over an existing connection pool.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SavePosition upserts the position row for pos.Symbol.
func (r *Repository) SavePosition(ctx context.Context, pos domain.Position) error {
	query := `
		INSERT INTO positions (symbol, qty, avg_cost, realized_pnl, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			qty = EXCLUDED.qty,
			avg_cost = EXCLUDED.avg_cost,
			realized_pnl = EXCLUDED.realized_pnl,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		pos.Symbol, pos.Quantity, pos.AvgCost.String(), pos.RealizedPnL.String(), pos.OpenedAt, pos.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: save position: %w", err)
	}
	return nil
}

// DeletePosition removes the row for a symbol once it returns to flat.
func (r *Repository) DeletePosition(ctx context.Context, symbol string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM positions WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("postgres: delete position: %w", err)
	}
	return nil
}

// SaveTrade appends an immutable trade row for a fill.
func (r *Repository) SaveTrade(ctx context.Context, fill domain.Fill, symbol string, side domain.OrderSide, pnl *decimal.Decimal) error {
	query := `
		INSERT INTO trades (id, symbol, side, qty, price, commission, pnl, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var pnlStr *string
	if pnl != nil {
		s := pnl.String()
		pnlStr = &s
	}

	id := fill.OrderID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.Exec(ctx, query,
		id, symbol, side.String(), fill.Quantity, fill.Price.String(), fill.Commission.String(), pnlStr, fill.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: save trade: %w", err)
	}
	return nil
}

// SaveSnapshot appends a portfolio-value snapshot row.
func (r *Repository) SaveSnapshot(ctx context.Context, snap domain.PortfolioSnapshot) error {
	query := `
		INSERT INTO snapshots (id, timestamp, portfolio_value, cash)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, uuid.NewString(), snap.Timestamp, snap.PortfolioValue.String(), snap.Cash.String())
	if err != nil {
		return fmt.Errorf("postgres: save snapshot: %w", err)
	}
	return nil
}

// LoadPositions reads every currently open position back, used on startup
// to rehydrate the in-memory ledger.
func (r *Repository) LoadPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := r.db.Query(ctx, `SELECT symbol, qty, avg_cost, realized_pnl, opened_at, updated_at FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var avgCost, realized string
		if err := rows.Scan(&p.Symbol, &p.Quantity, &avgCost, &realized, &p.OpenedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.AvgCost, _ = decimal.NewFromString(avgCost)
		p.RealizedPnL, _ = decimal.NewFromString(realized)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate positions: %w", err)
	}
	return out, nil
}

// LatestSnapshot returns the most recent portfolio snapshot, or false if
// none has been recorded yet.
func (r *Repository) LatestSnapshot(ctx context.Context) (domain.PortfolioSnapshot, bool, error) {
	var snap domain.PortfolioSnapshot
	var value, cash string
	row := r.db.QueryRow(ctx, `SELECT timestamp, portfolio_value, cash FROM snapshots ORDER BY timestamp DESC LIMIT 1`)
	if err := row.Scan(&snap.Timestamp, &value, &cash); err != nil {
		if err == pgx.ErrNoRows {
			return domain.PortfolioSnapshot{}, false, nil
		}
		return domain.PortfolioSnapshot{}, false, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	snap.PortfolioValue, _ = decimal.NewFromString(value)
	snap.Cash, _ = decimal.NewFromString(cash)
	return snap, true, nil
}
