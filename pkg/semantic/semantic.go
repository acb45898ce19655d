// Package semantic pairs an embedder with a vector driver to give the session
// store a nearest-neighbour search layer.
package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/engram/pkg/embeddings"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/vector"
)

// Index embeds session text on import and answers nearest-session queries.
type Index struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	logger   *slog.Logger
}

func New(embedder embeddings.Embedder, driver vector.Driver, log *slog.Logger) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if driver == nil {
		return nil, errors.New("vector driver is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Index{embedder: embedder, driver: driver, logger: log}, nil
}

// Digest identifies embedded text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Index embeds text for the session id. Text whose digest matches the stored
// document is not embedded again.
func (i *Index) Index(ctx context.Context, id, text string) error {
	digest := Digest(text)

	existing, err := i.driver.Get(ctx, []string{id})
	if err != nil {
		return fmt.Errorf("looking up embedding: %w", err)
	}
	if len(existing) == 1 && existing[0].Digest == digest {
		i.logger.Debug("session embedding unchanged", "session", id)
		return nil
	}

	emb, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	return i.driver.Add(ctx, []vector.Document{{ID: id, Digest: digest, Embedding: emb}})
}

// Nearest returns up to k session ids closest to query, closest first.
func (i *Index) Nearest(ctx context.Context, query string, k int) ([]string, error) {
	emb, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := i.driver.Query(ctx, emb, k)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// Forget drops the embeddings for the given sessions.
func (i *Index) Forget(ctx context.Context, ids ...string) error {
	return i.driver.Delete(ctx, ids)
}

func (i *Index) Close() error {
	return errors.Join(i.embedder.Close(), i.driver.Close())
}
