package session

import "errors"

// ErrNotFound is returned when a session doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "session not found"
	}

	return "session not found: " + e.ID
}

// ErrInvalidSession is returned by Upsert for records without an identity
// or source tool.
var ErrInvalidSession = errors.New("session requires an id and a source tool")
