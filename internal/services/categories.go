package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

const (
	maxCategoryName        = 50
	maxCategoryDescription = 200
)

// CategoryInput is the user-editable part of a category.
type CategoryInput struct {
	Name        string
	Type        string
	Description string
}

func (in CategoryInput) parse() (name string, typ models.TxType, desc string, err error) {
	name = strings.TrimSpace(in.Name)
	desc = strings.TrimSpace(in.Description)
	if name == "" {
		return "", "", "", invalid("category name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryName {
		return "", "", "", invalid("category name must be at most %d characters", maxCategoryName)
	}
	if utf8.RuneCountInString(desc) > maxCategoryDescription {
		return "", "", "", invalid("description must be at most %d characters", maxCategoryDescription)
	}
	typ, ok := models.ParseTxType(strings.TrimSpace(in.Type))
	if !ok {
		return "", "", "", invalid("type must be Income or Expense")
	}
	return name, typ, desc, nil
}

// CategoryService manages per-user categories.
type CategoryService struct {
	db *storage.DB
}

// List returns the user's categories in creation order.
func (s *CategoryService) List(ctx context.Context, userID int64) ([]models.Category, error) {
	categories, err := s.db.ListCategories(ctx, userID)
	return categories, storageErr(err)
}

// Get returns one of the user's categories.
func (s *CategoryService) Get(ctx context.Context, userID, id int64) (*models.Category, error) {
	c, err := ownedCategory(ctx, s.db.Store, userID, id)
	return c, storageErr(err)
}

// Create adds a category for the user. Names are unique per user.
func (s *CategoryService) Create(ctx context.Context, userID int64, in CategoryInput) (*models.Category, error) {
	name, typ, desc, err := in.parse()
	if err != nil {
		return nil, err
	}
	c := &models.Category{UserID: userID, Name: name, Type: typ, Description: desc}

	err = inTx(ctx, s.db, func(st *storage.Store) error {
		taken, err := st.CategoryNameTaken(ctx, userID, name, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCategory
		}
		err = st.CreateCategory(ctx, c)
		if errors.Is(err, storage.ErrConflict) {
			return ErrDuplicateCategory
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update overwrites a category in place. Changing the type is refused while
// transactions of the old type still reference the category.
func (s *CategoryService) Update(ctx context.Context, userID, id int64, in CategoryInput) (*models.Category, error) {
	name, typ, desc, err := in.parse()
	if err != nil {
		return nil, err
	}

	var c *models.Category
	err = inTx(ctx, s.db, func(st *storage.Store) error {
		var err error
		c, err = ownedCategory(ctx, st, userID, id)
		if err != nil {
			return err
		}
		taken, err := st.CategoryNameTaken(ctx, userID, name, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCategory
		}
		if typ != c.Type {
			mismatch, err := st.CategoryHasTransactionsNotOfType(ctx, id, typ)
			if err != nil {
				return err
			}
			if mismatch {
				return ErrCategoryTypeMismatch
			}
		}

		c.Name, c.Type, c.Description = name, typ, desc
		err = st.UpdateCategory(ctx, c)
		if errors.Is(err, storage.ErrConflict) {
			return ErrDuplicateCategory
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a category that no transaction references. It returns the
// deleted category, or the category in use alongside ErrCategoryInUse.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) (*models.Category, error) {
	var c *models.Category
	err := inTx(ctx, s.db, func(st *storage.Store) error {
		var err error
		c, err = ownedCategory(ctx, st, userID, id)
		if err != nil {
			return err
		}
		used, err := st.CategoryInUse(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrCategoryInUse
		}
		return st.DeleteCategory(ctx, userID, id)
	})
	if errors.Is(err, ErrCategoryInUse) {
		return c, err
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ownedCategory loads a category and checks that userID owns it.
func ownedCategory(ctx context.Context, st *storage.Store, userID, id int64) (*models.Category, error) {
	c, err := st.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}
