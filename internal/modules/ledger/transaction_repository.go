package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/domain"
)

const dateLayout = "2006-01-02"

// TransactionRepository handles the append-only transaction log.
// Entries are created or deleted, never updated.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transaction").Logger(),
	}
}

// Create appends a transaction to the log
func (r *TransactionRepository) Create(tx *domain.Transaction) error {
	res, err := r.db.Exec(
		`INSERT INTO transactions (asset_id, owner_id, type, date, quantity, unit_price, fees)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.AssetID, tx.OwnerID, string(tx.Type), tx.Date.Format(dateLayout),
		tx.Quantity, tx.UnitPrice, tx.Fees,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	tx.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction id: %w", err)
	}
	return nil
}

// GetByID returns one transaction
func (r *TransactionRepository) GetByID(id int64) (*domain.Transaction, error) {
	row := r.db.QueryRow(
		`SELECT id, asset_id, owner_id, type, date, quantity, unit_price, fees
		 FROM transactions WHERE id = ?`, id,
	)
	tx, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return tx, nil
}

// Delete removes a transaction from the log
func (r *TransactionRepository) Delete(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// ListByOwnerAndAsset returns the (owner, asset) log in ascending date
// order, the order every position recompute replays in
func (r *TransactionRepository) ListByOwnerAndAsset(ownerID, assetID int64) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT id, asset_id, owner_id, type, date, quantity, unit_price, fees
		 FROM transactions
		 WHERE owner_id = ? AND asset_id = ?
		 ORDER BY date ASC, id ASC`,
		ownerID, assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListByOwner returns every transaction of an owner in ascending date order
func (r *TransactionRepository) ListByOwner(ownerID int64) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT id, asset_id, owner_id, type, date, quantity, unit_price, fees
		 FROM transactions
		 WHERE owner_id = ?
		 ORDER BY date ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func scanTransaction(scan func(...interface{}) error) (*domain.Transaction, error) {
	var tx domain.Transaction
	var txType, date string
	if err := scan(&tx.ID, &tx.AssetID, &tx.OwnerID, &txType, &date,
		&tx.Quantity, &tx.UnitPrice, &tx.Fees); err != nil {
		return nil, err
	}
	tx.Type = domain.TransactionType(txType)
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction date %q: %w", date, err)
	}
	tx.Date = parsed
	return &tx, nil
}
