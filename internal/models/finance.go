package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TxType classifies categories and transactions.
type TxType string

const (
	Income  TxType = "Income"
	Expense TxType = "Expense"
)

// Valid reports whether t is one of the known types.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTxType accepts "Income" or "Expense" case-insensitively.
func ParseTxType(s string) (TxType, bool) {
	switch {
	case strings.EqualFold(s, string(Income)):
		return Income, true
	case strings.EqualFold(s, string(Expense)):
		return Expense, true
	}
	return "", false
}

// Category is a user-defined label grouping transactions.
type Category struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Type        TxType `json:"type"`
	Description string `json:"description"`
}

// Transaction is a single dated monetary movement.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	PaymentMode string          `json:"payment_mode"`
	Type        TxType          `json:"type"`
	CategoryID  *int64          `json:"category_id,omitempty"`

	// CategoryName is filled by list queries joining categories; empty when uncategorized.
	CategoryName string `json:"category_name,omitempty"`
}
