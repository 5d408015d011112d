package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	MaxCategoryNameLength        = 50
	MaxCategoryDescriptionLength = 200
)

// CategoryID is a UUID-based identifier for Category
type CategoryID string

// NewCategoryID generates a new UUID v4 CategoryID
func NewCategoryID() CategoryID {
	return CategoryID(uuid.New().String())
}

// Category is a user-defined label. Names are unique per owner, compared
// case-insensitively.
type Category struct {
	ID          CategoryID
	Name        string
	Description string
	Icon        string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NameKey returns the form of the name used for uniqueness checks
func (x *Category) NameKey() string {
	return CategoryNameKey(x.Name)
}

// CategoryNameKey normalizes a category name for comparison
func CategoryNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (x *Category) Validate() error {
	if x.ID == "" {
		return goerr.Wrap(ErrInvalidInput, "category ID is empty")
	}
	name := strings.TrimSpace(x.Name)
	if name == "" {
		return goerr.Wrap(ErrInvalidInput, "category name is required", goerr.V(CategoryIDKey, x.ID))
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return goerr.Wrap(ErrInvalidInput, "category name is too long",
			goerr.V(NameKey, x.Name), goerr.V("max", MaxCategoryNameLength))
	}
	if utf8.RuneCountInString(x.Description) > MaxCategoryDescriptionLength {
		return goerr.Wrap(ErrInvalidInput, "category description is too long",
			goerr.V(CategoryIDKey, x.ID), goerr.V("max", MaxCategoryDescriptionLength))
	}
	return nil
}

func (x *Category) Copy() *Category {
	if x == nil {
		return nil
	}
	c := *x
	return &c
}

// CategoryPatch holds the fields of an update. Nil fields are left as is.
type CategoryPatch struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
}

// Apply writes the patch onto a copy of the category
func (p CategoryPatch) Apply(c *Category, now time.Time) *Category {
	out := c.Copy()
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Icon != nil {
		out.Icon = *p.Icon
	}
	if p.Color != nil {
		out.Color = *p.Color
	}
	out.UpdatedAt = now
	return out
}

// DefaultCategories returns the seed set created the first time an owner
// lists categories
func DefaultCategories(now time.Time) []*Category {
	seeds := []struct {
		name, description, icon, color string
	}{
		{"My Trades", "Your personal trade history and performance", "trending-up", "#10b981"},
		{"Market Analysis", "Charts, technical analysis and market insights", "bar-chart", "#3b82f6"},
		{"News & Research", "Important news articles and research papers", "newspaper", "#8b5cf6"},
		{"Learning Resources", "Trading education and learning materials", "book-open", "#f59e0b"},
	}

	categories := make([]*Category, len(seeds))
	for i, s := range seeds {
		categories[i] = &Category{
			ID:          NewCategoryID(),
			Name:        s.name,
			Description: s.description,
			Icon:        s.icon,
			Color:       s.color,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return categories
}

// UniqueCategoryIDs drops duplicates keeping the first occurrence
func UniqueCategoryIDs(ids []CategoryID) []CategoryID {
	seen := make(map[CategoryID]bool, len(ids))
	out := make([]CategoryID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
