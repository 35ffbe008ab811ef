// Package common holds identifier and paging types shared by every layer.
package common

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a string alias for UUID v4.
type ID string

// TenantID identifies the accounting practice that owns a dossier.
type TenantID string

// UserID identifies the actor behind a mutation.  SystemUser marks
// automatic transitions.
type UserID string

// SystemUser is the actor recorded for automatic changes.
const SystemUser UserID = "system"

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// IsZero reports whether id is empty.
func (id ID) IsZero() bool { return id == "" }

// Validate checks that id is a well-formed UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}
	return nil
}

// Validate checks that the tenant identifier is present.
func (t TenantID) Validate() error {
	if t == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	return nil
}

// Pagination defines parameters for paginated listing.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total,omitempty"`
}

// Offset returns the row offset for the current page, normalising a zero or
// negative page to the first one.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the page size, defaulting to 50 and capping at 500.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return 50
	case p.PageSize > 500:
		return 500
	default:
		return p.PageSize
	}
}
