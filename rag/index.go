// Package rag provides semantic-similarity evidence for dish
// classification, backed by a persistent vector index of labeled dishes.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/veglens/veglens/store"
)

// Evidence is a labeled neighbour of a query dish, ordered by
// descending similarity.
type Evidence struct {
	DishName        string  `json:"dish_name"`
	IsVegetarian    bool    `json:"is_vegetarian"`
	SimilarityScore float64 `json:"similarity_score"`
	Description     string  `json:"description,omitempty"`
}

// Embedder produces dense vectors for a batch of texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index searches the dish knowledge base by semantic similarity.
// Queries are read-only and safe to issue concurrently.
type Index struct {
	store    *store.Store
	embedder Embedder
	seedPath string

	mu     sync.Mutex
	seeded bool
}

// New creates an index over the given store. seedPath names the file
// used to populate an empty collection on first use; empty disables
// seeding.
func New(s *store.Store, embedder Embedder, seedPath string) *Index {
	return &Index{store: s, embedder: embedder, seedPath: seedPath}
}

// EnsureSeeded populates the collection from the seed file if and only
// if it is empty. Idempotent: a failure leaves the collection untouched
// and the next call retries.
func (ix *Index) EnsureSeeded(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.seeded {
		return nil
	}

	count, err := ix.store.CountDishes(ctx)
	if err != nil {
		return fmt.Errorf("counting dishes: %w", err)
	}
	if count > 0 {
		slog.Debug("rag: knowledge base already populated", "dishes", count)
		ix.seeded = true
		return nil
	}

	if ix.seedPath == "" {
		ix.seeded = true
		return nil
	}

	dishes, err := LoadSeed(ix.seedPath)
	if err != nil {
		return fmt.Errorf("loading seed file: %w", err)
	}
	if len(dishes) == 0 {
		slog.Warn("rag: seed file contains no dishes", "path", ix.seedPath)
		ix.seeded = true
		return nil
	}

	texts := make([]string, len(dishes))
	for i, d := range dishes {
		texts[i] = seedDocument(d)
	}

	embeddings, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding seed dishes: %w", err)
	}
	if len(embeddings) != len(dishes) {
		return fmt.Errorf("embedder returned %d vectors for %d dishes", len(embeddings), len(dishes))
	}

	if err := ix.store.InsertDishes(ctx, dishes, embeddings); err != nil {
		return fmt.Errorf("seeding knowledge base: %w", err)
	}

	slog.Info("rag: knowledge base seeded", "dishes", len(dishes), "path", ix.seedPath)
	ix.seeded = true
	return nil
}

// Search embeds the query and returns the top-k most similar labeled
// dishes. Similarity is derived from L2 distance as 1/(1+distance),
// rounded to 3 decimal places.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Evidence, error) {
	if err := ix.EnsureSeeded(ctx); err != nil {
		// Seeding retries on the next query; search what is there.
		slog.Warn("rag: seeding failed, searching unseeded index", "error", err)
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	neighbors, err := ix.store.VectorSearch(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	evidence := make([]Evidence, len(neighbors))
	for i, n := range neighbors {
		evidence[i] = Evidence{
			DishName:        n.Name,
			IsVegetarian:    n.IsVegetarian,
			SimilarityScore: similarityFromDistance(n.Distance),
			Description:     n.Description,
		}
	}
	return evidence, nil
}

// seedDocument builds the text embedded for a knowledge-base dish.
func seedDocument(d store.Dish) string {
	if d.Description != "" {
		return d.Name + " - " + d.Description
	}
	return d.Name
}

// similarityFromDistance maps an L2 distance into (0,1], rounded to 3
// decimal places.
func similarityFromDistance(distance float64) float64 {
	return math.Round(1000/(1+distance)) / 1000
}
