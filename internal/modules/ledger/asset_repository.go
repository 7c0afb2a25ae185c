package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/domain"
	"github.com/psouza/carteira/internal/marketdata"
)

// AssetRepository handles asset database operations
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("repo", "asset").Logger(),
	}
}

// GetByTicker returns an asset by its normalized ticker
func (r *AssetRepository) GetByTicker(ticker string) (*domain.Asset, error) {
	row := r.db.QueryRow(
		`SELECT id, ticker, name, asset_type, sector, created_at FROM assets WHERE ticker = ?`,
		marketdata.NormalizeTicker(ticker),
	)
	return scanAsset(row)
}

// GetByID returns an asset by primary key
func (r *AssetRepository) GetByID(id int64) (*domain.Asset, error) {
	row := r.db.QueryRow(
		`SELECT id, ticker, name, asset_type, sector, created_at FROM assets WHERE id = ?`, id,
	)
	return scanAsset(row)
}

// GetOrCreate returns the asset for ticker, creating it on first use
func (r *AssetRepository) GetOrCreate(ticker, name string, assetType domain.AssetType) (*domain.Asset, error) {
	ticker = marketdata.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}

	asset, err := r.GetByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if asset != nil {
		return asset, nil
	}

	if name == "" {
		name = ticker
	}
	if assetType == "" {
		assetType = domain.AssetStock
		if strings.HasSuffix(ticker, "11") {
			assetType = domain.AssetType(marketdata.AssetTypeFor(ticker))
		}
	}

	res, err := r.db.Exec(
		`INSERT INTO assets (ticker, name, asset_type) VALUES (?, ?, ?)`,
		ticker, name, string(assetType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read asset id: %w", err)
	}

	r.log.Info().Str("ticker", ticker).Int64("id", id).Msg("Created asset")
	return &domain.Asset{
		ID:        id,
		Ticker:    ticker,
		Name:      name,
		Type:      assetType,
		CreatedAt: time.Now(),
	}, nil
}

// TickersByIDs returns the id -> ticker mapping for a set of assets
func (r *AssetRepository) TickersByIDs(ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(
		`SELECT id, ticker FROM assets WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var ticker string
		if err := rows.Scan(&id, &ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		out[id] = ticker
	}
	return out, rows.Err()
}

func scanAsset(row *sql.Row) (*domain.Asset, error) {
	var a domain.Asset
	var assetType string
	var createdAt string
	err := row.Scan(&a.ID, &a.Ticker, &a.Name, &assetType, &a.Sector, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}
	a.Type = domain.AssetType(assetType)
	a.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	return &a, nil
}
