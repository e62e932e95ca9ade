// Package cache maps canonical generation requests to generated results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

// Store is a result cache. Implementations are safe for concurrent use.
// Get counts toward the hit and miss statistics; Peek does not.
type Store interface {
	Get(ctx context.Context, key string) (models.GenerationResult, bool)
	Peek(ctx context.Context, key string) (models.GenerationResult, bool)
	Put(ctx context.Context, key string, res models.GenerationResult) error
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Key computes the canonical cache key of a request: a SHA-256 over the
// normalized request, so component order and duplicates do not matter.
func Key(req models.GenerationRequest) string {
	n := req.Normalize()
	h := sha256.New()
	data, _ := json.Marshal(struct {
		Style      models.Style       `json:"s"`
		Components []models.Component `json:"c"`
		Width      int                `json:"w"`
		Height     int                `json:"h"`
		Variant    models.Variant     `json:"v"`
	}{n.Style, n.Components, n.Size.Width, n.Size.Height, n.Variant})
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}
