package storage

import (
	"context"

	"finance-tracker/internal/models"
)

const categoryColumns = "id, user_id, name, type, description"

func scanCategory(row interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Description); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListCategories returns the user's categories in creation order.
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := s.query(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// GetCategory retrieves a category by ID regardless of owner.
func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return scanCategory(s.queryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id))
}

// CategoryNameTaken reports whether the user already has a category called
// name, ignoring the category with excludeID (0 excludes nothing).
func (s *Store) CategoryNameTaken(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	var taken bool
	err := s.queryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM categories WHERE user_id = ? AND name = ? AND id <> ?)",
		userID, name, excludeID,
	).Scan(&taken)
	return taken, err
}

// HasCategories reports whether the user owns at least one category.
func (s *Store) HasCategories(ctx context.Context, userID int64) (bool, error) {
	var has bool
	err := s.queryRow(ctx, "SELECT EXISTS (SELECT 1 FROM categories WHERE user_id = ?)", userID).Scan(&has)
	return has, err
}

// CreateCategory inserts c and sets its ID.
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	err := s.queryRow(ctx,
		"INSERT INTO categories (user_id, name, type, description) VALUES (?, ?, ?, ?) RETURNING id",
		c.UserID, c.Name, c.Type, c.Description,
	).Scan(&c.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// UpdateCategory overwrites name, type and description.
func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	res, err := s.exec(ctx,
		"UPDATE categories SET name = ?, type = ?, description = ? WHERE id = ? AND user_id = ?",
		c.Name, c.Type, c.Description, c.ID, c.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return requireRow(res)
}

// DeleteCategory removes a category owned by userID.
func (s *Store) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CategoryInUse reports whether any transaction references the category.
func (s *Store) CategoryInUse(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := s.queryRow(ctx, "SELECT EXISTS (SELECT 1 FROM transactions WHERE category_id = ?)", id).Scan(&used)
	return used, err
}

// CategoryHasTransactionsNotOfType reports whether the category is referenced
// by a transaction whose type differs from typ.
func (s *Store) CategoryHasTransactionsNotOfType(ctx context.Context, id int64, typ models.TxType) (bool, error) {
	var found bool
	err := s.queryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM transactions WHERE category_id = ? AND type <> ?)",
		id, typ,
	).Scan(&found)
	return found, err
}
