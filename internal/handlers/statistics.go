package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// chartColors cycles through category colors in charts and legends.
var chartColors = []string{
	"#60a5fa", "#a78bfa", "#f472b6", "#fbbf24", "#818cf8", "#fb7185", "#34d399", "#94a3b8",
}

func colorAt(i int) string {
	return chartColors[i%len(chartColors)]
}

// StatsCategoryItem represents a category with its spending statistics.
type StatsCategoryItem struct {
	Category   string
	Total      decimal.Decimal
	Count      int
	Percentage float64
	Color      string
}

// TransactionGroup groups a month's transactions by day.
type TransactionGroup struct {
	Title   string
	Date    string
	Expense decimal.Decimal
	Items   []models.Transaction
}

// StatsViewModel is the data passed to the statistics view template.
type StatsViewModel struct {
	Year           int
	Month          int
	MonthName      string
	Total          decimal.Decimal
	Income         decimal.Decimal
	Categories     []StatsCategoryItem
	Groups         []TransactionGroup
	PrevYear       int
	PrevMonth      int
	NextYear       int
	NextMonth      int
	IsCurrentMonth bool
}

// Statistics renders the monthly expense breakdown.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	// zero values select the current month
	var year, month int
	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && y > 0 && y < 10000 {
		year = y
	}
	if m, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil && m >= 1 && m <= 12 {
		month = m
	}

	stats, err := h.svc.Dashboard.Month(r.Context(), GetUserFromContext(r).ID, year, time.Month(month))
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	categoryItems := make([]StatsCategoryItem, 0, len(stats.Categories))
	for i, c := range stats.Categories {
		categoryItems = append(categoryItems, StatsCategoryItem{
			Category:   c.Name,
			Total:      c.Total,
			Count:      c.Count,
			Percentage: c.Percentage,
			Color:      colorAt(i),
		})
	}

	now := time.Now().In(h.loc)
	var groups []TransactionGroup
	for _, t := range stats.Transactions {
		local := t.Date.In(h.loc)
		dateStr := local.Format("2006-01-02")
		if len(groups) == 0 || groups[len(groups)-1].Date != dateStr {
			groups = append(groups, TransactionGroup{Date: dateStr, Title: formatGroupTitle(local, now)})
		}
		g := &groups[len(groups)-1]
		if t.Type == models.Expense {
			g.Expense = g.Expense.Add(t.Amount)
		}
		g.Items = append(g.Items, t)
	}

	first := time.Date(stats.Year, stats.Month, 1, 0, 0, 0, 0, time.UTC)
	prevDate := first.AddDate(0, -1, 0)
	nextDate := first.AddDate(0, 1, 0)

	h.render(w, r, http.StatusOK, "stats.html", "Statistics", StatsViewModel{
		Year:           stats.Year,
		Month:          int(stats.Month),
		MonthName:      stats.Month.String(),
		Total:          stats.Total,
		Income:         stats.Income,
		Categories:     categoryItems,
		Groups:         groups,
		PrevYear:       prevDate.Year(),
		PrevMonth:      int(prevDate.Month()),
		NextYear:       nextDate.Year(),
		NextMonth:      int(nextDate.Month()),
		IsCurrentMonth: stats.Year == now.Year() && stats.Month == now.Month(),
	})
}

func formatGroupTitle(date, now time.Time) string {
	dateStr := date.Format("2006-01-02")
	if dateStr == now.Format("2006-01-02") {
		return "TODAY"
	}
	if dateStr == now.AddDate(0, 0, -1).Format("2006-01-02") {
		return "YESTERDAY"
	}
	return strings.ToUpper(date.Format("Mon, 02 Jan '06"))
}
