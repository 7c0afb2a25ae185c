package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/psouza/carteira/internal/domain"
	"github.com/psouza/carteira/internal/events"
	"github.com/psouza/carteira/internal/locking"
	"github.com/psouza/carteira/internal/marketdata"
)

// ErrOversell is returned when a SELL exceeds the currently tracked
// quantity. Sells are rejected at input time; an accounting engine must
// not silently invent shares.
var ErrOversell = errors.New("sell quantity exceeds held quantity")

// QuoteSource provides current prices for best-effort refreshes
type QuoteSource interface {
	Resolve(ctx context.Context, tickers []string, opts marketdata.Options) (marketdata.Result, error)
}

// Service maintains derived positions from the immutable transaction
// log. Every mutation of the log triggers a synchronous recompute of the
// affected (owner, asset) position.
type Service struct {
	assets    *AssetRepository
	txs       *TransactionRepository
	positions *PositionRepository
	quotes    QuoteSource
	locks     *locking.Manager
	events    *events.Manager
	log       zerolog.Logger
}

// NewService creates a new ledger service
func NewService(
	assets *AssetRepository,
	txs *TransactionRepository,
	positions *PositionRepository,
	quotes QuoteSource,
	locks *locking.Manager,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		assets:    assets,
		txs:       txs,
		positions: positions,
		quotes:    quotes,
		locks:     locks,
		events:    eventManager,
		log:       log.With().Str("service", "ledger").Logger(),
	}
}

// AddTransaction validates and appends a transaction, then recomputes
// the affected position synchronously
func (s *Service) AddTransaction(ticker, name string, tx domain.Transaction) (*domain.Transaction, *domain.Position, error) {
	if tx.Type != domain.TransactionBuy && tx.Type != domain.TransactionSell {
		return nil, nil, fmt.Errorf("invalid transaction type %q", tx.Type)
	}
	if tx.Quantity <= 0 {
		return nil, nil, fmt.Errorf("quantity must be positive")
	}
	if tx.UnitPrice < 0 || tx.Fees < 0 {
		return nil, nil, fmt.Errorf("price and fees must not be negative")
	}

	asset, err := s.assets.GetOrCreate(ticker, name, "")
	if err != nil {
		return nil, nil, err
	}
	tx.AssetID = asset.ID

	key := positionKey(tx.OwnerID, asset.ID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if tx.Type == domain.TransactionSell {
		held, err := s.heldQuantity(tx.OwnerID, asset.ID)
		if err != nil {
			return nil, nil, err
		}
		if tx.Quantity > held {
			return nil, nil, fmt.Errorf("%s: held %.4f, selling %.4f: %w",
				asset.Ticker, held, tx.Quantity, ErrOversell)
		}
	}

	if err := s.txs.Create(&tx); err != nil {
		return nil, nil, err
	}
	s.events.Emit(events.TransactionCreated, "ledger", map[string]interface{}{
		"transaction_id": tx.ID,
		"ticker":         asset.Ticker,
		"type":           string(tx.Type),
	})

	pos, err := s.recomputeLocked(asset.ID, tx.OwnerID)
	if err != nil {
		return nil, nil, err
	}

	// Best-effort async price refresh; staleness is acceptable.
	go s.refreshPrice(asset.ID, asset.Ticker)

	return &tx, pos, nil
}

// DeleteTransaction removes a log entry and recomputes its position
func (s *Service) DeleteTransaction(id, ownerID int64) error {
	tx, err := s.txs.GetByID(id)
	if err != nil {
		return err
	}
	if tx == nil || tx.OwnerID != ownerID {
		return fmt.Errorf("transaction %d not found", id)
	}

	key := positionKey(ownerID, tx.AssetID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := s.txs.Delete(id); err != nil {
		return err
	}
	s.events.Emit(events.TransactionDeleted, "ledger", map[string]interface{}{
		"transaction_id": id,
	})

	if _, err := s.recomputeLocked(tx.AssetID, ownerID); err != nil {
		return err
	}
	return nil
}

// Recompute rebuilds the position for one (asset, owner) pair from the
// full transaction log. Returns nil when the position ends closed.
func (s *Service) Recompute(assetID, ownerID int64) (*domain.Position, error) {
	key := positionKey(ownerID, assetID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)
	return s.recomputeLocked(assetID, ownerID)
}

// recomputeLocked replays the (owner, asset) log in ascending date order
// using blended average-cost accounting. Callers must hold the position
// lock for the pair.
func (s *Service) recomputeLocked(assetID, ownerID int64) (*domain.Position, error) {
	txs, err := s.txs.ListByOwnerAndAsset(ownerID, assetID)
	if err != nil {
		return nil, err
	}

	if len(txs) == 0 {
		if err := s.positions.Delete(ownerID, assetID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	quantity := decimal.Zero
	cost := decimal.Zero

	for _, tx := range txs {
		q := decimal.NewFromFloat(tx.Quantity)
		switch tx.Type {
		case domain.TransactionBuy:
			quantity = quantity.Add(q)
			cost = cost.Add(q.Mul(decimal.NewFromFloat(tx.UnitPrice)).Add(decimal.NewFromFloat(tx.Fees)))
		case domain.TransactionSell:
			if quantity.IsPositive() {
				// Remove the sold shares at the running average cost,
				// so the next sell uses the post-sale basis.
				avgCost := cost.Div(quantity)
				cost = cost.Sub(avgCost.Mul(q))
				if cost.IsNegative() {
					// Floor at zero to absorb rounding drift.
					cost = decimal.Zero
				}
			} else {
				// Oversold log entry (possible in pre-validation data).
				// Logged and tolerated; the quantity goes negative and
				// the position ends up closed below.
				s.log.Warn().
					Int64("asset_id", assetID).
					Int64("owner_id", ownerID).
					Int64("transaction_id", tx.ID).
					Msg("SELL without tracked quantity in transaction log")
			}
			quantity = quantity.Sub(q)
		}
	}

	if quantity.Sign() <= 0 {
		// Fully closed: delete rather than zero, so reopening starts a
		// fresh cost basis.
		if err := s.positions.Delete(ownerID, assetID); err != nil {
			return nil, err
		}
		s.events.Emit(events.PositionClosed, "ledger", map[string]interface{}{
			"asset_id": assetID,
			"owner_id": ownerID,
		})
		return nil, nil
	}

	averageCost := cost.Div(quantity)

	existing, err := s.positions.Get(ownerID, assetID)
	if err != nil {
		return nil, err
	}

	pos := &domain.Position{
		AssetID:     assetID,
		OwnerID:     ownerID,
		Quantity:    quantity.InexactFloat64(),
		AverageCost: averageCost.InexactFloat64(),
		LastUpdated: time.Now(),
	}
	if existing != nil {
		pos.ID = existing.ID
		pos.Ticker = existing.Ticker
		pos.CurrentPrice = existing.CurrentPrice
	} else {
		// Until the first market refresh lands, value at cost.
		pos.CurrentPrice = pos.AverageCost
	}

	if err := s.positions.Upsert(pos); err != nil {
		return nil, err
	}
	s.events.Emit(events.PositionRecomputed, "ledger", map[string]interface{}{
		"asset_id": assetID,
		"owner_id": ownerID,
		"quantity": pos.Quantity,
	})

	return pos, nil
}

// heldQuantity replays the log to the net quantity currently tracked
func (s *Service) heldQuantity(ownerID, assetID int64) (float64, error) {
	txs, err := s.txs.ListByOwnerAndAsset(ownerID, assetID)
	if err != nil {
		return 0, err
	}
	quantity := decimal.Zero
	for _, tx := range txs {
		q := decimal.NewFromFloat(tx.Quantity)
		if tx.Type == domain.TransactionBuy {
			quantity = quantity.Add(q)
		} else {
			quantity = quantity.Sub(q)
		}
	}
	return quantity.InexactFloat64(), nil
}

// refreshPrice asks the resolver for a current price and stores it.
// Failures only log; the recompute that triggered it already succeeded.
func (s *Service) refreshPrice(assetID int64, ticker string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := s.quotes.Resolve(ctx, []string{ticker}, marketdata.Options{})
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Price refresh failed")
		return
	}
	quote, ok := result.Quotes[marketdata.NormalizeTicker(ticker)]
	if !ok || quote.Price <= 0 {
		return
	}
	if err := s.positions.UpdatePrice(assetID, quote.Price); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Price update failed")
	}
}

// Overview summarizes an owner's portfolio: totals, unrealized result,
// allocation by asset type and the largest positions.
type Overview struct {
	TotalValue       float64            `json:"total_value"`
	TotalInvested    float64            `json:"total_invested"`
	ProfitLoss       float64            `json:"profit_loss"`
	ProfitLossPct    float64            `json:"profit_loss_percentage"`
	AllocationByType []AllocationSlice  `json:"allocation_by_type"`
	TopPositions     []PositionSnapshot `json:"top_positions"`
	PositionsCount   int                `json:"positions_count"`
}

// AllocationSlice is one slice of the allocation breakdown
type AllocationSlice struct {
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// PositionSnapshot is one row of the top-positions list
type PositionSnapshot struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Percentage    float64 `json:"percentage"`
	ProfitLossPct float64 `json:"profit_loss_percentage"`
}

// GetOverview builds the portfolio overview for an owner
func (s *Service) GetOverview(ownerID int64) (*Overview, error) {
	positions, err := s.positions.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		AllocationByType: []AllocationSlice{},
		TopPositions:     []PositionSnapshot{},
		PositionsCount:   len(positions),
	}
	if len(positions) == 0 {
		return overview, nil
	}

	byType := map[string]float64{}
	names := map[int64]string{}
	types := map[int64]string{}
	for _, pos := range positions {
		overview.TotalValue += pos.MarketValue()
		overview.TotalInvested += pos.CostBasis()

		asset, err := s.assets.GetByID(pos.AssetID)
		if err != nil {
			return nil, err
		}
		name := pos.Ticker
		assetType := string(domain.AssetStock)
		if asset != nil {
			name = asset.Name
			assetType = string(asset.Type)
		}
		names[pos.AssetID] = name
		types[pos.AssetID] = assetType
		byType[assetType] += pos.MarketValue()
	}

	overview.ProfitLoss = overview.TotalValue - overview.TotalInvested
	if overview.TotalInvested > 0 {
		overview.ProfitLossPct = overview.ProfitLoss / overview.TotalInvested * 100
	}

	for assetType, value := range byType {
		slice := AllocationSlice{Type: assetType, Value: value}
		if overview.TotalValue > 0 {
			slice.Percentage = value / overview.TotalValue * 100
		}
		overview.AllocationByType = append(overview.AllocationByType, slice)
	}
	sort.Slice(overview.AllocationByType, func(i, j int) bool {
		return overview.AllocationByType[i].Value > overview.AllocationByType[j].Value
	})

	sorted := make([]domain.Position, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MarketValue() > sorted[j].MarketValue()
	})
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}
	for _, pos := range sorted {
		snapshot := PositionSnapshot{
			Ticker: pos.Ticker,
			Name:   names[pos.AssetID],
			Value:  pos.MarketValue(),
		}
		if overview.TotalValue > 0 {
			snapshot.Percentage = pos.MarketValue() / overview.TotalValue * 100
		}
		if basis := pos.CostBasis(); basis > 0 {
			snapshot.ProfitLossPct = (pos.MarketValue() - basis) / basis * 100
		}
		overview.TopPositions = append(overview.TopPositions, snapshot)
	}

	return overview, nil
}

// ListTransactions returns an owner's full log, newest first
func (s *Service) ListTransactions(ownerID int64) ([]domain.Transaction, error) {
	txs, err := s.txs.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	// Repository order is ascending for replay; the API lists newest first.
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	return txs, nil
}

// ListPositions returns an owner's current positions
func (s *Service) ListPositions(ownerID int64) ([]domain.Position, error) {
	return s.positions.ListByOwner(ownerID)
}

func positionKey(ownerID, assetID int64) string {
	return fmt.Sprintf("position:%d:%d", ownerID, assetID)
}
