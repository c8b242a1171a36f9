package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// PageSize is the number of transactions per dashboard page.
const PageSize = 7

const (
	maxTitle       = 100
	maxPaymentMode = 25

	// Creation tolerates dates up to one day ahead; edits tolerate none.
	createGraceDays = 1
	editGraceDays   = 0
)

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TransactionInput carries raw form values for a transaction.
type TransactionInput struct {
	Title       string
	Amount      string
	Date        string
	PaymentMode string
	Type        string
	CategoryID  string
}

// TransactionService manages per-user transactions.
type TransactionService struct {
	db *storage.DB
	clock
}

// Page is one page of a user's transactions, newest first.
type Page struct {
	Items   []models.Transaction
	Page    int
	PerPage int
	Total   int
	Pages   int
	HasPrev bool
	HasNext bool
	PrevNum int
	NextNum int
}

// maxAmount bounds amounts to twelve integer digits, the width of the
// NUMERIC(14,2) column.
var maxAmount = decimal.New(1, 12)

// ParseAmount parses a non-negative decimal amount rounded to cents.
// Only plain notation is accepted; exponents such as 1e3 are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || !plainDecimal(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(s)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	amount = amount.Round(2)
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// plainDecimal reports whether s is digits with at most one decimal point.
func plainDecimal(s string) bool {
	digits, point := 0, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && !point:
			point = true
		default:
			return false
		}
	}
	return digits > 0
}

// parseDate reads a form date in c's location. An empty value means now.
// Dates later than today plus graceDays are refused.
func (c clock) parseDate(s string, graceDays int) (time.Time, error) {
	s = strings.TrimSpace(s)
	var date time.Time
	if s == "" {
		date = c.now().In(c.loc)
	} else {
		var err error
		for _, layout := range dateLayouts {
			if date, err = time.ParseInLocation(layout, s, c.loc); err == nil {
				break
			}
		}
		if err != nil {
			return time.Time{}, ErrInvalidDate
		}
	}
	limit := c.today().AddDate(0, 0, graceDays)
	if startOfDay(date).After(limit) {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

// parse validates everything that does not need the database.
func (s *TransactionService) parse(in TransactionInput, graceDays int) (*models.Transaction, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitle {
		return nil, invalid("title must be at most %d characters", maxTitle)
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	date, err := s.parseDate(in.Date, graceDays)
	if err != nil {
		return nil, err
	}
	paymentMode := strings.TrimSpace(in.PaymentMode)
	if paymentMode == "" {
		return nil, invalid("payment mode is required")
	}
	if utf8.RuneCountInString(paymentMode) > maxPaymentMode {
		return nil, invalid("payment mode must be at most %d characters", maxPaymentMode)
	}
	typ, ok := models.ParseTxType(strings.TrimSpace(in.Type))
	if !ok {
		return nil, invalid("type must be Income or Expense")
	}

	t := &models.Transaction{
		Title:       title,
		Amount:      amount,
		Date:        date,
		PaymentMode: paymentMode,
		Type:        typ,
	}
	if raw := strings.TrimSpace(in.CategoryID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, ErrUnknownCategory
		}
		t.CategoryID = &id
	}
	return t, nil
}

// checkCategory resolves t's category among the user's own and enforces
// that both carry the same type.
func checkCategory(ctx context.Context, st *storage.Store, userID int64, t *models.Transaction) error {
	if t.CategoryID == nil {
		return nil
	}
	c, err := ownedCategory(ctx, st, userID, *t.CategoryID)
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		return ErrUnknownCategory
	}
	if err != nil {
		return err
	}
	if c.Type != t.Type {
		return ErrCategoryTypeMismatch
	}
	t.CategoryName = c.Name
	return nil
}

// Create records a new transaction for the user.
func (s *TransactionService) Create(ctx context.Context, userID int64, in TransactionInput) (*models.Transaction, error) {
	t, err := s.parse(in, createGraceDays)
	if err != nil {
		return nil, err
	}
	t.UserID = userID

	err = inTx(ctx, s.db, func(st *storage.Store) error {
		if err := checkCategory(ctx, st, userID, t); err != nil {
			return err
		}
		return st.CreateTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one of the user's transactions.
func (s *TransactionService) Get(ctx context.Context, userID, id int64) (*models.Transaction, error) {
	t, err := ownedTransaction(ctx, s.db.Store, userID, id)
	return t, storageErr(err)
}

// Update overwrites one of the user's transactions.
func (s *TransactionService) Update(ctx context.Context, userID, id int64, in TransactionInput) (*models.Transaction, error) {
	var t *models.Transaction
	err := inTx(ctx, s.db, func(st *storage.Store) error {
		if _, err := ownedTransaction(ctx, st, userID, id); err != nil {
			return err
		}
		var err error
		t, err = s.parse(in, editGraceDays)
		if err != nil {
			return err
		}
		t.ID, t.UserID = id, userID
		if err := checkCategory(ctx, st, userID, t); err != nil {
			return err
		}
		return st.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes one of the user's transactions.
func (s *TransactionService) Delete(ctx context.Context, userID, id int64) error {
	return inTx(ctx, s.db, func(st *storage.Store) error {
		if _, err := ownedTransaction(ctx, st, userID, id); err != nil {
			return err
		}
		return st.DeleteTransaction(ctx, userID, id)
	})
}

// ListPage returns page (1-based) of the user's transactions, newest
// first. Pages past the end are empty; pages below 1 are treated as 1.
func (s *TransactionService) ListPage(ctx context.Context, userID int64, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	total, err := s.db.CountTransactions(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}

	p := &Page{Page: page, PerPage: PageSize, Total: total}
	p.Pages = (total + PageSize - 1) / PageSize
	p.HasPrev = page > 1
	p.HasNext = page < p.Pages
	if p.HasPrev {
		p.PrevNum = page - 1
	}
	if p.HasNext {
		p.NextNum = page + 1
	}
	if page > p.Pages {
		p.Items = []models.Transaction{}
		return p, nil
	}

	p.Items, err = s.db.ListTransactionsPage(ctx, userID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, storageErr(err)
	}
	return p, nil
}

// ownedTransaction loads a transaction and checks that userID owns it.
func ownedTransaction(ctx context.Context, st *storage.Store, userID, id int64) (*models.Transaction, error) {
	t, err := st.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}
