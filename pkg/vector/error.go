package vector

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensions is returned when an embedding does not match the
	// configured dimensionality.
	ErrDimensions = errors.New("embedding dimensions mismatch")
)
