package storage

import (
	"context"
	"database/sql"
	"time"

	"finance-tracker/internal/models"
)

const transactionSelect = `
	SELECT t.id, t.user_id, t.title, t.amount, t.date, t.payment_mode, t.type, t.category_id, COALESCE(c.name, '')
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	var t models.Transaction
	var categoryID sql.NullInt64
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Amount, &t.Date, &t.PaymentMode, &t.Type, &categoryID, &t.CategoryName); err != nil {
		return nil, notFound(err)
	}
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	return &t, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// CreateTransaction inserts t and sets its ID.
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.queryRow(ctx,
		`INSERT INTO transactions (user_id, category_id, title, amount, date, payment_mode, type)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.UserID, nullableID(t.CategoryID), t.Title, t.Amount, storedTime(t.Date), t.PaymentMode, t.Type,
	).Scan(&t.ID)
}

// GetTransaction retrieves a transaction by ID regardless of owner.
func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	return scanTransaction(s.queryRow(ctx, transactionSelect+" WHERE t.id = ?", id))
}

// UpdateTransaction overwrites every editable field of t.
func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	res, err := s.exec(ctx,
		`UPDATE transactions
		SET category_id = ?, title = ?, amount = ?, date = ?, payment_mode = ?, type = ?
		WHERE id = ? AND user_id = ?`,
		nullableID(t.CategoryID), t.Title, t.Amount, storedTime(t.Date), t.PaymentMode, t.Type, t.ID, t.UserID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteTransaction removes a transaction owned by userID.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListTransactions returns all of the user's transactions, oldest first.
func (s *Store) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return s.listTransactions(ctx,
		transactionSelect+" WHERE t.user_id = ? ORDER BY t.date ASC, t.id ASC",
		userID,
	)
}

// ListTransactionsPage returns one page of the user's transactions, newest first.
func (s *Store) ListTransactionsPage(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	return s.listTransactions(ctx,
		transactionSelect+" WHERE t.user_id = ? ORDER BY t.date DESC, t.id DESC LIMIT ? OFFSET ?",
		userID, limit, offset,
	)
}

// CountTransactions returns the number of transactions the user owns.
func (s *Store) CountTransactions(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM transactions WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}
