package services

import (
	"context"
	"errors"
	"fmt"

	"finance-tracker/internal/storage"
)

var (
	ErrDuplicateIdentity     = errors.New("username or email already exists")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrInvalidOrExpiredToken = errors.New("the reset link is invalid or has expired")
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("unauthorized access")
	ErrDuplicateCategory     = errors.New("category already exists")
	ErrCategoryInUse         = errors.New("category is assigned to existing transactions")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDate           = errors.New("invalid date")
	ErrCategoryTypeMismatch  = errors.New("category type does not match transaction type")
	ErrInvalidInput          = errors.New("invalid input")

	// ErrUnknownCategory is the ErrNotFound returned when a transaction
	// names a category the user does not own.
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrNotFound)

	// ErrStorage wraps unexpected persistence failures. The wrapped detail is
	// for logs only.
	ErrStorage = errors.New("storage failure")
)

var domainErrors = []error{
	ErrDuplicateIdentity,
	ErrInvalidCredentials,
	ErrInvalidOrExpiredToken,
	ErrNotFound,
	ErrForbidden,
	ErrDuplicateCategory,
	ErrCategoryInUse,
	ErrInvalidAmount,
	ErrInvalidDate,
	ErrCategoryTypeMismatch,
	ErrInvalidInput,
	ErrStorage,
}

// IsDomainError reports whether err belongs to the service taxonomy.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func storageErr(err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// inTx runs fn in a database transaction and maps anything outside the
// taxonomy onto ErrStorage.
func inTx(ctx context.Context, db *storage.DB, fn func(*storage.Store) error) error {
	return storageErr(db.InTx(ctx, fn))
}
