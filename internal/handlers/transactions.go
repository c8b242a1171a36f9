package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	applog "finance-tracker/internal/log"
	"finance-tracker/internal/models"
	"finance-tracker/internal/services"
)

const formDateLayout = "2006-01-02T15:04"

// TransactionFormView is the data passed to transaction_form.html.
type TransactionFormView struct {
	IsEdit     bool
	ID         int64
	Form       services.TransactionInput
	Categories []models.Category
	MaxDate    string
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func transactionForm(r *http.Request) services.TransactionInput {
	return services.TransactionInput{
		Title:       r.FormValue("title"),
		Amount:      r.FormValue("amount"),
		Date:        r.FormValue("date"),
		PaymentMode: r.FormValue("payment_mode"),
		Type:        r.FormValue("type"),
		CategoryID:  r.FormValue("category_id"),
	}
}

// maxDate is the latest value the date picker offers: end of today plus
// graceDays.
func (h *Handlers) maxDate(graceDays int) string {
	y, m, d := time.Now().In(h.loc).Date()
	return time.Date(y, m, d+graceDays, 23, 59, 0, 0, h.loc).Format(formDateLayout)
}

// AddTransactionForm renders the form to create a transaction. Users
// without categories are sent to create one first.
func (h *Handlers) AddTransactionForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	categories, err := h.svc.Categories.List(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if len(categories) == 0 {
		h.addFlash(w, r, FlashInfo, `You must create a category (like "Food" or "Salary") first!`)
		http.Redirect(w, r, "/categories/add", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "transaction_form.html", "Add Transaction", TransactionFormView{
		Form:       services.TransactionInput{Date: time.Now().In(h.loc).Format(formDateLayout), Type: string(models.Expense)},
		Categories: categories,
		MaxDate:    h.maxDate(1),
	})
}

// AddTransaction handles the creation of a new transaction.
func (h *Handlers) AddTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	form := transactionForm(r)

	if _, err := h.svc.Transactions.Create(r.Context(), user.ID, form); err != nil {
		logIfStorage(r, err)
		categories, listErr := h.svc.Categories.List(r.Context(), user.ID)
		if listErr != nil {
			h.serverError(w, r, listErr)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, "transaction_form.html", "Add Transaction", TransactionFormView{
			Form:       form,
			Categories: categories,
			MaxDate:    h.maxDate(1),
		}, Flash{FlashError, userMessage(err)})
		return
	}

	applog.FromContext(r.Context()).Info("Transaction added")
	h.addFlash(w, r, FlashSuccess, "Transaction added!!")
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// EditTransactionForm renders the form to edit an existing transaction.
func (h *Handlers) EditTransactionForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	t, err := h.svc.Transactions.Get(r.Context(), user.ID, id)
	if err != nil {
		h.ownershipError(w, r, err, "/dashboard")
		return
	}
	categories, err := h.svc.Categories.List(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	form := services.TransactionInput{
		Title:       t.Title,
		Amount:      t.Amount.StringFixed(2),
		Date:        t.Date.In(h.loc).Format(formDateLayout),
		PaymentMode: t.PaymentMode,
		Type:        string(t.Type),
	}
	if t.CategoryID != nil {
		form.CategoryID = strconv.FormatInt(*t.CategoryID, 10)
	}
	h.render(w, r, http.StatusOK, "transaction_form.html", "Edit Transaction", TransactionFormView{
		IsEdit:     true,
		ID:         t.ID,
		Form:       form,
		Categories: categories,
		MaxDate:    h.maxDate(0),
	})
}

// EditTransaction handles the update of an existing transaction.
func (h *Handlers) EditTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	form := transactionForm(r)

	_, err := h.svc.Transactions.Update(r.Context(), user.ID, id, form)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrForbidden):
		h.ownershipError(w, r, err, "/dashboard")
		return
	case errors.Is(err, services.ErrNotFound) && !errors.Is(err, services.ErrUnknownCategory):
		h.NotFound(w, r)
		return
	default:
		logIfStorage(r, err)
		categories, listErr := h.svc.Categories.List(r.Context(), user.ID)
		if listErr != nil {
			h.serverError(w, r, listErr)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, "transaction_form.html", "Edit Transaction", TransactionFormView{
			IsEdit:     true,
			ID:         id,
			Form:       form,
			Categories: categories,
			MaxDate:    h.maxDate(0),
		}, Flash{FlashError, userMessage(err)})
		return
	}

	h.addFlash(w, r, FlashSuccess, "Transaction updated successfully!")
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// DeleteTransaction removes a transaction.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := h.svc.Transactions.Delete(r.Context(), user.ID, id); err != nil {
		h.ownershipError(w, r, err, "/dashboard")
		return
	}
	h.addFlash(w, r, FlashSuccess, "Transaction deleted successfully!!")
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// ownershipError maps lookups of foreign or missing records: foreign ones
// redirect to back with a notice, missing ones render 404.
func (h *Handlers) ownershipError(w http.ResponseWriter, r *http.Request, err error, back string) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		applog.FromContext(r.Context()).Warn("Unauthorized access attempt", "path", r.URL.Path)
		h.addFlash(w, r, FlashError, "Unauthorized Access!!!")
		http.Redirect(w, r, back, http.StatusFound)
	case errors.Is(err, services.ErrNotFound):
		h.NotFound(w, r)
	default:
		h.serverError(w, r, err)
	}
}
