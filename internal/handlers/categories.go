package handlers

import (
	"errors"
	"net/http"

	"finance-tracker/internal/models"
	"finance-tracker/internal/services"
)

// CategoryListView is the data passed to categories.html.
type CategoryListView struct {
	Categories []models.Category
}

// CategoryFormView is the data passed to category_form.html.
type CategoryFormView struct {
	IsEdit bool
	ID     int64
	Form   services.CategoryInput
}

func categoryForm(r *http.Request) services.CategoryInput {
	return services.CategoryInput{
		Name:        r.FormValue("name"),
		Type:        r.FormValue("type"),
		Description: r.FormValue("description"),
	}
}

// ListCategories renders the user's categories.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories.List(r.Context(), GetUserFromContext(r).ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "categories.html", "Categories", CategoryListView{Categories: categories})
}

// AddCategoryForm renders the form to create a category.
func (h *Handlers) AddCategoryForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "category_form.html", "Add Category", CategoryFormView{
		Form: services.CategoryInput{Type: string(models.Expense)},
	})
}

// AddCategory handles the creation of a category.
func (h *Handlers) AddCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	form := categoryForm(r)

	if _, err := h.svc.Categories.Create(r.Context(), GetUserFromContext(r).ID, form); err != nil {
		logIfStorage(r, err)
		h.render(w, r, http.StatusUnprocessableEntity, "category_form.html", "Add Category",
			CategoryFormView{Form: form}, Flash{FlashError, userMessage(err)})
		return
	}
	h.addFlash(w, r, FlashSuccess, "Category added!")
	http.Redirect(w, r, "/categories", http.StatusFound)
}

// EditCategoryForm renders the form to edit a category.
func (h *Handlers) EditCategoryForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	c, err := h.svc.Categories.Get(r.Context(), GetUserFromContext(r).ID, id)
	if err != nil {
		h.categoryOwnershipError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "category_form.html", "Edit Category", CategoryFormView{
		IsEdit: true,
		ID:     c.ID,
		Form:   services.CategoryInput{Name: c.Name, Type: string(c.Type), Description: c.Description},
	})
}

// EditCategory handles the update of a category.
func (h *Handlers) EditCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	form := categoryForm(r)

	_, err := h.svc.Categories.Update(r.Context(), GetUserFromContext(r).ID, id, form)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrNotFound):
		h.categoryOwnershipError(w, r, err)
		return
	default:
		logIfStorage(r, err)
		msg := userMessage(err)
		if errors.Is(err, services.ErrCategoryTypeMismatch) {
			msg = "Cannot change the type while transactions of the current type use this category."
		}
		h.render(w, r, http.StatusUnprocessableEntity, "category_form.html", "Edit Category",
			CategoryFormView{IsEdit: true, ID: id, Form: form}, Flash{FlashError, msg})
		return
	}
	h.addFlash(w, r, FlashSuccess, "Category was updated successfully!!")
	http.Redirect(w, r, "/categories", http.StatusFound)
}

// DeleteCategory removes a category no transaction uses.
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	user := GetUserFromContext(r)

	c, err := h.svc.Categories.Delete(r.Context(), user.ID, id)
	switch {
	case err == nil:
		h.addFlash(w, r, FlashSuccess, "Category was deleted successfully!!")
	case errors.Is(err, services.ErrCategoryInUse):
		h.addFlash(w, r, FlashError, "Cannot delete '"+c.Name+"' because it is assigned to existing transactions.")
	default:
		h.categoryOwnershipError(w, r, err)
		return
	}
	http.Redirect(w, r, "/categories", http.StatusFound)
}

func (h *Handlers) categoryOwnershipError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrForbidden) {
		h.addFlash(w, r, FlashError, "Unauthorized Access!")
		http.Redirect(w, r, "/categories", http.StatusFound)
		return
	}
	h.ownershipError(w, r, err, "/categories")
}
