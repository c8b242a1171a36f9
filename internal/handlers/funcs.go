package handlers

import (
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		// money formats an amount with two decimals.
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		"date": func(t time.Time) string {
			return t.In(loc).Format("02 Jan 2006")
		},
		"datetime": func(t time.Time) string {
			return t.In(loc).Format("02 Jan 2006 15:04")
		},
		"color":      colorAt,
		"isNegative": func(d decimal.Decimal) bool { return d.IsNegative() },
	}
}
