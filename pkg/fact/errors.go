package fact

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when fact content is blank.
	ErrEmptyContent = errors.New("fact content is empty")

	// ErrInvalidPriority is returned for priorities outside 1..5.
	ErrInvalidPriority = fmt.Errorf("fact priority must be between %d and %d", MinPriority, MaxPriority)
)

// ErrInvalidScope is returned for scopes other than global or project:<name>.
type ErrInvalidScope struct {
	Scope string
}

func (e ErrInvalidScope) Error() string {
	return fmt.Sprintf("invalid scope %q: want %q or %q", e.Scope, ScopeGlobal, ProjectPrefix+"<name>")
}

// ErrNotFound is returned when a fact doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return "fact not found: " + e.ID
}
