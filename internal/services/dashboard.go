package services

import (
	"context"
	"sort"
	"time"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// Uncategorized labels transactions without a category.
const Uncategorized = "Uncategorized"

const dayLayout = "2006-01-02"

// CategoryTotal is the summed amount for one category label.
type CategoryTotal struct {
	Name   string
	Amount decimal.Decimal
}

// DailySeries holds per-day sums as parallel slices sorted by date.
type DailySeries struct {
	Dates   []string
	Income  []decimal.Decimal
	Expense []decimal.Decimal
}

// Summary is the aggregated view of a user's transactions.
type Summary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal

	// In first-seen order.
	ExpenseByCategory []CategoryTotal
	IncomeByCategory  []CategoryTotal

	Daily DailySeries
}

// Summarize aggregates txs, which should be ordered by date ascending, in a
// single pass. Days are calendar days in loc.
func Summarize(txs []models.Transaction, loc *time.Location) *Summary {
	s := &Summary{}
	expenseIdx := map[string]int{}
	incomeIdx := map[string]int{}
	type day struct{ income, expense decimal.Decimal }
	days := map[string]*day{}

	for _, t := range txs {
		name := t.CategoryName
		if t.CategoryID == nil || name == "" {
			name = Uncategorized
		}
		key := t.Date.In(loc).Format(dayLayout)
		d, ok := days[key]
		if !ok {
			d = &day{}
			days[key] = d
		}

		switch t.Type {
		case models.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			s.IncomeByCategory = addTo(s.IncomeByCategory, incomeIdx, name, t.Amount)
			d.income = d.income.Add(t.Amount)
		case models.Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
			s.ExpenseByCategory = addTo(s.ExpenseByCategory, expenseIdx, name, t.Amount)
			d.expense = d.expense.Add(t.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)

	s.Daily.Dates = make([]string, 0, len(days))
	for k := range days {
		s.Daily.Dates = append(s.Daily.Dates, k)
	}
	sort.Strings(s.Daily.Dates)
	s.Daily.Income = make([]decimal.Decimal, len(s.Daily.Dates))
	s.Daily.Expense = make([]decimal.Decimal, len(s.Daily.Dates))
	for i, k := range s.Daily.Dates {
		s.Daily.Income[i] = days[k].income
		s.Daily.Expense[i] = days[k].expense
	}
	return s
}

func addTo(totals []CategoryTotal, idx map[string]int, name string, amount decimal.Decimal) []CategoryTotal {
	if i, ok := idx[name]; ok {
		totals[i].Amount = totals[i].Amount.Add(amount)
		return totals
	}
	idx[name] = len(totals)
	return append(totals, CategoryTotal{Name: name, Amount: amount})
}

// MonthCategory is one category's share of a month's expenses.
type MonthCategory struct {
	Name       string
	Total      decimal.Decimal
	Count      int
	Percentage float64
}

// MonthStats breaks down one calendar month of expenses by category.
type MonthStats struct {
	Year       int
	Month      time.Month
	Total      decimal.Decimal
	Income     decimal.Decimal
	Categories []MonthCategory
	// Transactions of the month, newest first.
	Transactions []models.Transaction
}

// DashboardService reads aggregated views of a user's data.
type DashboardService struct {
	db  *storage.DB
	txs *TransactionService
	clock
}

// Summary aggregates all of the user's transactions.
func (s *DashboardService) Summary(ctx context.Context, userID int64) (*Summary, error) {
	txs, err := s.db.ListTransactions(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return Summarize(txs, s.loc), nil
}

// Page returns a page of recent transactions for the dashboard table.
func (s *DashboardService) Page(ctx context.Context, userID int64, page int) (*Page, error) {
	return s.txs.ListPage(ctx, userID, page)
}

// HasCategories reports whether the user owns any category; adding a
// transaction requires one.
func (s *DashboardService) HasCategories(ctx context.Context, userID int64) (bool, error) {
	has, err := s.db.HasCategories(ctx, userID)
	return has, storageErr(err)
}

// Month computes the expense breakdown for year/month. A zero year or an
// out-of-range month selects the current month.
func (s *DashboardService) Month(ctx context.Context, userID int64, year int, month time.Month) (*MonthStats, error) {
	now := s.now().In(s.loc)
	if year == 0 {
		year = now.Year()
	}
	if month < time.January || month > time.December {
		month = now.Month()
	}

	txs, err := s.db.ListTransactions(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return monthStats(txs, year, month, s.loc), nil
}

func monthStats(txs []models.Transaction, year int, month time.Month, loc *time.Location) *MonthStats {
	ms := &MonthStats{Year: year, Month: month}
	idx := map[string]int{}

	for _, t := range txs {
		local := t.Date.In(loc)
		if local.Year() != year || local.Month() != month {
			continue
		}
		ms.Transactions = append(ms.Transactions, t)
		if t.Type == models.Income {
			ms.Income = ms.Income.Add(t.Amount)
			continue
		}
		name := t.CategoryName
		if t.CategoryID == nil || name == "" {
			name = Uncategorized
		}
		i, ok := idx[name]
		if !ok {
			i = len(ms.Categories)
			idx[name] = i
			ms.Categories = append(ms.Categories, MonthCategory{Name: name})
		}
		ms.Categories[i].Total = ms.Categories[i].Total.Add(t.Amount)
		ms.Categories[i].Count++
		ms.Total = ms.Total.Add(t.Amount)
	}

	if ms.Total.IsPositive() {
		for i := range ms.Categories {
			ms.Categories[i].Percentage = ms.Categories[i].Total.Div(ms.Total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
	}
	sort.SliceStable(ms.Categories, func(i, j int) bool {
		return ms.Categories[i].Total.GreaterThan(ms.Categories[j].Total)
	})
	for i, j := 0, len(ms.Transactions)-1; i < j; i, j = i+1, j-1 {
		ms.Transactions[i], ms.Transactions[j] = ms.Transactions[j], ms.Transactions[i]
	}
	return ms
}
