// Package vector provides the storage interface for session embeddings.
package vector

import "context"

// Document is one embedded item.
type Document struct {
	// ID is the session identity the embedding belongs to.
	ID string

	// Digest identifies the text that was embedded, so unchanged sessions
	// are not embedded again on re-import.
	Digest string

	// Embedding is the vector representation of the document content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings, replacing documents that
	// share an ID.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
