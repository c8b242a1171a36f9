// Package services holds the application operations: authentication,
// category and transaction management, and dashboard aggregation. Every
// query is scoped to the acting user's id, and every multi-step write runs
// in a single database transaction.
package services

import (
	"time"

	"finance-tracker/internal/auth"
	applog "finance-tracker/internal/log"
	"finance-tracker/internal/mail"
	"finance-tracker/internal/storage"
)

// Deps are the collaborators shared by the services.
type Deps struct {
	Tokens   *auth.ResetTokens
	Mail     mail.Queue
	BaseURL  string
	Location *time.Location
	Logger   *applog.Logger
}

// Services bundles the application services.
type Services struct {
	Auth         *AuthService
	Categories   *CategoryService
	Transactions *TransactionService
	Dashboard    *DashboardService
}

// New wires the services over db.
func New(db *storage.DB, deps Deps) *Services {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Logger == nil {
		deps.Logger = applog.Discard()
	}
	clk := clock{now: time.Now, loc: deps.Location}
	txs := &TransactionService{db: db, clock: clk}
	return &Services{
		Auth: &AuthService{
			db:      db,
			tokens:  deps.Tokens,
			mail:    deps.Mail,
			baseURL: deps.BaseURL,
			now:     time.Now,
			logger:  deps.Logger.WithComponent("auth"),
		},
		Categories:   &CategoryService{db: db},
		Transactions: txs,
		Dashboard:    &DashboardService{db: db, txs: txs, clock: clk},
	}
}

type clock struct {
	now func() time.Time
	loc *time.Location
}

// today returns local midnight of the current day.
func (c clock) today() time.Time {
	return startOfDay(c.now().In(c.loc))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
