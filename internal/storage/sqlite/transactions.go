package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
)

const transactionColumns = `id, group_id, description, amount, payer_member_id, category,
	subtotal, tax, discount, created_by, date, created_at`

// CreateTransaction persists a new transaction with its items and splits.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, txn *models.Transaction, splits []models.Split) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if txn.CreatedAt == 0 {
		txn.CreatedAt = now
	}
	if txn.Date == 0 {
		txn.Date = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.GroupID, txn.Description, txn.Amount, txn.PayerID, txn.Category.String(),
		txn.Subtotal, txn.Tax, txn.Discount, txn.CreatedBy, txn.Date, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := insertChildren(ctx, tx, txn, splits); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReplaceTransaction overwrites a transaction and swaps its items and splits
// for the given ones. Readers never observe the old splits next to the new
// header, or no splits at all.
func (s *SQLiteStore) ReplaceTransaction(ctx context.Context, txn *models.Transaction, splits []models.Split) error {
	if txn.Date == 0 {
		txn.Date = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE transactions
		 SET description = ?, amount = ?, payer_member_id = ?, category = ?,
		     subtotal = ?, tax = ?, discount = ?, date = ?
		 WHERE id = ?`,
		txn.Description, txn.Amount, txn.PayerID, txn.Category.String(),
		txn.Subtotal, txn.Tax, txn.Discount, txn.Date, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if err := requireAffected(result, "transaction", txn.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transaction_splits WHERE transaction_id = ?", txn.ID); err != nil {
		return fmt.Errorf("failed to delete old splits: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transaction_items WHERE transaction_id = ?", txn.ID); err != nil {
		return fmt.Errorf("failed to delete old items: %w", err)
	}

	if err := insertChildren(ctx, tx, txn, splits); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID, including its items.
func (s *SQLiteStore) GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.readTx(ctx, func(tx *sql.Tx) error {
		var err error
		txn, err = getTransaction(ctx, tx, txnID)
		return err
	})
	return txn, err
}

// LoadTransaction retrieves a transaction with its items and splits from a
// single snapshot.
func (s *SQLiteStore) LoadTransaction(ctx context.Context, txnID string) (*models.Transaction, []models.Split, error) {
	var (
		txn    *models.Transaction
		splits []models.Split
	)
	err := s.readTx(ctx, func(tx *sql.Tx) error {
		var err error
		if txn, err = getTransaction(ctx, tx, txnID); err != nil {
			return err
		}
		splits, err = querySplits(ctx, tx,
			`SELECT transaction_id, member_id, amount_owed
			 FROM transaction_splits WHERE transaction_id = ? ORDER BY member_id`,
			txnID,
		)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return txn, splits, nil
}

// LoadLedger retrieves the group's transactions (without items), most recent
// first, and every split recorded in the group. Both come from one read
// transaction, so a concurrent replace is seen entirely or not at all.
func (s *SQLiteStore) LoadLedger(ctx context.Context, groupID string) ([]*models.Transaction, []models.Split, error) {
	var (
		txns   []*models.Transaction
		splits []models.Split
	)
	err := s.readTx(ctx, func(tx *sql.Tx) error {
		var err error
		if txns, err = listTransactions(ctx, tx, groupID); err != nil {
			return err
		}
		if s.betweenLedgerReads != nil {
			s.betweenLedgerReads()
		}
		splits, err = querySplits(ctx, tx,
			`SELECT sp.transaction_id, sp.member_id, sp.amount_owed
			 FROM transaction_splits sp
			 JOIN transactions t ON t.id = sp.transaction_id
			 WHERE t.group_id = ?
			 ORDER BY t.date, sp.transaction_id, sp.member_id`,
			groupID,
		)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return txns, splits, nil
}

// DeleteTransaction removes a transaction with its items and splits.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, txnID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children first, explicitly, so the delete does not depend on the
	// foreign_keys pragma.
	if _, err := tx.ExecContext(ctx, "DELETE FROM transaction_splits WHERE transaction_id = ?", txnID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transaction_items WHERE transaction_id = ?", txnID); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", txnID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if err := requireAffected(result, "transaction", txnID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// readTx runs fn inside a read-only transaction.
func (s *SQLiteStore) readTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit read transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTransaction(ctx context.Context, q queryer, txnID string) (*models.Transaction, error) {
	txn, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, txnID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transaction", txnID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, name, price, assigned_to_member_id
		 FROM transaction_items WHERE transaction_id = ? ORDER BY position`,
		txnID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.AssignedTo); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		txn.Items = append(txn.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return txn, nil
}

func listTransactions(ctx context.Context, q queryer, groupID string) ([]*models.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE group_id = ? ORDER BY date DESC, created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txns, nil
}

func querySplits(ctx context.Context, q queryer, query string, args ...any) ([]models.Split, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		var split models.Split
		if err := rows.Scan(&split.TransactionID, &split.MemberID, &split.AmountOwed); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	return splits, nil
}

// insertChildren writes the items and splits of txn inside tx.
func insertChildren(ctx context.Context, tx *sql.Tx, txn *models.Transaction, splits []models.Split) error {
	for i := range txn.Items {
		item := &txn.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_items (id, transaction_id, position, name, price, assigned_to_member_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, txn.ID, i, item.Name, item.Price, item.AssignedTo,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	for i := range splits {
		split := &splits[i]
		split.TransactionID = txn.ID
		_, err := tx.ExecContext(ctx,
			"INSERT INTO transaction_splits (transaction_id, member_id, amount_owed) VALUES (?, ?, ?)",
			split.TransactionID, split.MemberID, split.AmountOwed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var category string
	err := row.Scan(
		&txn.ID, &txn.GroupID, &txn.Description, &txn.Amount, &txn.PayerID, &category,
		&txn.Subtotal, &txn.Tax, &txn.Discount, &txn.CreatedBy, &txn.Date, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.Category, err = models.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return txn, nil
}
