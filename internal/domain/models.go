package domain

import "time"

// TransactionType is the direction of a ledger entry
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// AssetType classifies a tradable asset
type AssetType string

const (
	AssetStock AssetType = "stock"
	AssetFund  AssetType = "fund"
)

// Asset represents a tradable asset identified by its normalized ticker
type Asset struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Type      AssetType `json:"type"`
	Sector    string    `json:"sector,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is one append-only ledger entry. Entries are never edited,
// only created or deleted, and positions are always derived from them.
type Transaction struct {
	ID        int64           `json:"id"`
	AssetID   int64           `json:"asset_id"`
	OwnerID   int64           `json:"owner_id"`
	Type      TransactionType `json:"type"`
	Date      time.Time       `json:"date"`
	Quantity  float64         `json:"quantity"`
	UnitPrice float64         `json:"unit_price"`
	Fees      float64         `json:"fees"`
	CreatedAt time.Time       `json:"created_at"`
}

// Position is the derived holding for one (owner, asset) pair. It is a pure
// function of the transaction log up to now and is never edited directly.
type Position struct {
	ID           int64     `json:"id"`
	AssetID      int64     `json:"asset_id"`
	OwnerID      int64     `json:"owner_id"`
	Ticker       string    `json:"ticker"`
	Quantity     float64   `json:"quantity"`
	AverageCost  float64   `json:"average_cost"`
	CurrentPrice float64   `json:"current_price"`
	LastUpdated  time.Time `json:"last_updated"`
}

// MarketValue returns the position value at its current price
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// CostBasis returns the total cost of the currently held shares
func (p Position) CostBasis() float64 {
	return p.Quantity * p.AverageCost
}
