package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/domain"
)

// PositionRepository handles derived position rows. Positions are only
// ever written by the recompute path; nothing edits them directly.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// Get returns the position for one (owner, asset) pair
func (r *PositionRepository) Get(ownerID, assetID int64) (*domain.Position, error) {
	row := r.db.QueryRow(
		`SELECT p.id, p.asset_id, p.owner_id, a.ticker, p.quantity, p.average_cost, p.current_price, p.last_updated
		 FROM positions p JOIN assets a ON a.id = p.asset_id
		 WHERE p.owner_id = ? AND p.asset_id = ?`,
		ownerID, assetID,
	)
	pos, err := scanPosition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	return pos, nil
}

// ListByOwner returns all positions of an owner
func (r *PositionRepository) ListByOwner(ownerID int64) ([]domain.Position, error) {
	rows, err := r.db.Query(
		`SELECT p.id, p.asset_id, p.owner_id, a.ticker, p.quantity, p.average_cost, p.current_price, p.last_updated
		 FROM positions p JOIN assets a ON a.id = p.asset_id
		 WHERE p.owner_id = ?
		 ORDER BY a.ticker`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// DistinctTickers returns every ticker currently held by any owner
func (r *PositionRepository) DistinctTickers() ([]string, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT a.ticker FROM positions p JOIN assets a ON a.id = p.asset_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// Upsert writes the derived position for one (owner, asset) pair
func (r *PositionRepository) Upsert(pos *domain.Position) error {
	_, err := r.db.Exec(
		`INSERT INTO positions (asset_id, owner_id, quantity, average_cost, current_price, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, asset_id) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			current_price = excluded.current_price,
			last_updated = excluded.last_updated`,
		pos.AssetID, pos.OwnerID, pos.Quantity, pos.AverageCost,
		pos.CurrentPrice, pos.LastUpdated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// Delete removes the position for one (owner, asset) pair. Used when a
// position is fully closed: reopening later starts a fresh cost basis.
func (r *PositionRepository) Delete(ownerID, assetID int64) error {
	if _, err := r.db.Exec(
		`DELETE FROM positions WHERE owner_id = ? AND asset_id = ?`, ownerID, assetID,
	); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

// UpdatePrice refreshes the cached current price on every position
// holding the given asset
func (r *PositionRepository) UpdatePrice(assetID int64, price float64) error {
	if _, err := r.db.Exec(
		`UPDATE positions SET current_price = ?, last_updated = ? WHERE asset_id = ?`,
		price, time.Now().UTC().Format(time.RFC3339), assetID,
	); err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	return nil
}

// UpdatePriceByTicker is UpdatePrice addressed by normalized ticker,
// used by the scheduled refresh which works from ticker lists
func (r *PositionRepository) UpdatePriceByTicker(ticker string, price float64) error {
	if _, err := r.db.Exec(
		`UPDATE positions SET current_price = ?, last_updated = ?
		 WHERE asset_id = (SELECT id FROM assets WHERE ticker = ?)`,
		price, time.Now().UTC().Format(time.RFC3339), ticker,
	); err != nil {
		return fmt.Errorf("failed to update price for %s: %w", ticker, err)
	}
	return nil
}

func scanPosition(scan func(...interface{}) error) (*domain.Position, error) {
	var pos domain.Position
	var lastUpdated string
	if err := scan(&pos.ID, &pos.AssetID, &pos.OwnerID, &pos.Ticker,
		&pos.Quantity, &pos.AverageCost, &pos.CurrentPrice, &lastUpdated); err != nil {
		return nil, err
	}
	pos.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return &pos, nil
}
