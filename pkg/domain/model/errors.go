package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Sentinel errors shared by repositories, services and use cases
var (
	ErrNotFound            = goerr.New("not found")
	ErrDuplicateName       = goerr.New("duplicate category name")
	ErrInvalidCategory     = goerr.New("invalid category")
	ErrConflict            = goerr.New("record already exists")
	ErrProviderUnavailable = goerr.New("embedding provider unavailable")
	ErrDimensionMismatch   = goerr.New("embedding dimension mismatch")
	ErrInvalidInput        = goerr.New("invalid input")
	ErrUnsupportedMedia    = goerr.New("unsupported media type")
	ErrTooLarge            = goerr.New("payload too large")
)

// Context keys for error values
const (
	OwnerKey      = "owner"
	ItemIDKey     = "item_id"
	CategoryIDKey = "category_id"
	NameKey       = "name"
)

// InvalidCategoryError lists category IDs that do not exist for the owner.
// errors.Is(err, ErrInvalidCategory) holds for it.
type InvalidCategoryError struct {
	IDs []CategoryID
}

func (e *InvalidCategoryError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = string(id)
	}
	return "invalid category: " + strings.Join(ids, ", ")
}

func (e *InvalidCategoryError) Is(target error) bool {
	return target == ErrInvalidCategory
}

// NewInvalidCategoryError builds a wrapped InvalidCategoryError
func NewInvalidCategoryError(ids []CategoryID) error {
	return goerr.Wrap(&InvalidCategoryError{IDs: ids}, "category does not exist",
		goerr.V("category_ids", ids))
}
