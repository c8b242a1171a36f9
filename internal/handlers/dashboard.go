package handlers

import (
	"net/http"
	"strconv"

	"finance-tracker/internal/services"

	"github.com/shopspring/decimal"
)

// ChartData feeds the dashboard charts as JSON.
type ChartData struct {
	ExpenseLabels []string  `json:"expenseLabels"`
	ExpenseValues []float64 `json:"expenseValues"`
	IncomeLabels  []string  `json:"incomeLabels"`
	IncomeValues  []float64 `json:"incomeValues"`
	Dates         []string  `json:"dates"`
	DateIncome    []float64 `json:"dateIncome"`
	DateExpense   []float64 `json:"dateExpense"`
}

// DashboardView is the data passed to dashboard.html.
type DashboardView struct {
	Summary       *services.Summary
	Page          *services.Page
	HasCategories bool
	Chart         ChartData
}

func floats(ds []decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.InexactFloat64()
	}
	return out
}

func splitTotals(totals []services.CategoryTotal) ([]string, []float64) {
	labels := make([]string, len(totals))
	values := make([]float64, len(totals))
	for i, t := range totals {
		labels[i] = t.Name
		values[i] = t.Amount.InexactFloat64()
	}
	return labels, values
}

func newChartData(s *services.Summary) ChartData {
	c := ChartData{
		Dates:       s.Daily.Dates,
		DateIncome:  floats(s.Daily.Income),
		DateExpense: floats(s.Daily.Expense),
	}
	c.ExpenseLabels, c.ExpenseValues = splitTotals(s.ExpenseByCategory)
	c.IncomeLabels, c.IncomeValues = splitTotals(s.IncomeByCategory)
	return c
}

// Dashboard renders totals, charts and one page of recent transactions.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	ctx := r.Context()

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = p
	}

	summary, err := h.svc.Dashboard.Summary(ctx, user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	recent, err := h.svc.Dashboard.Page(ctx, user.ID, page)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	hasCategories, err := h.svc.Dashboard.HasCategories(ctx, user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "dashboard.html", "Dashboard", DashboardView{
		Summary:       summary,
		Page:          recent,
		HasCategories: hasCategories,
		Chart:         newChartData(summary),
	})
}
