// Package review holds analysis outcomes that need human confirmation
// and reconciles submitted corrections into final totals.
package review

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/veglens/veglens/classify"
	"github.com/veglens/veglens/parser"
)

// PendingReview is an analysis outcome parked until a human resolves
// its uncertain items.
type PendingReview struct {
	RequestID      string
	ConfidentItems []classify.VegetarianItem
	UncertainItems []classify.UncertainItem
	PartialSum     float64
	ItemsParsed    int
	CreatedAt      time.Time
}

// Store keeps pending reviews in memory, keyed by request ID. Safe for
// concurrent use. Reviews do not survive a restart.
type Store struct {
	mu      sync.Mutex
	pending map[string]*PendingReview
}

// NewStore creates an empty review store.
func NewStore() *Store {
	return &Store{pending: make(map[string]*PendingReview)}
}

// Put parks an outcome under its request ID, replacing any previous
// entry with the same ID.
func (s *Store) Put(r *PendingReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[r.RequestID] = r
	slog.Debug("review: parked for review",
		"request_id", r.RequestID, "uncertain", len(r.UncertainItems))
}

// Get returns the pending review for the given ID, or false when none
// exists. The returned value must not be mutated.
func (s *Store) Get(requestID string) (*PendingReview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pending[requestID]
	return r, ok
}

// Delete removes a pending review. Deleting an absent ID is a no-op.
func (s *Store) Delete(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, requestID)
}

// Len reports the number of parked reviews.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ErrNotFound is returned when a correction targets an unknown or
// already-resolved request.
var ErrNotFound = fmt.Errorf("review: pending review not found")

// Resolution is the final result after corrections are applied.
type Resolution struct {
	Items       []classify.VegetarianItem
	Total       float64
	ItemsParsed int
}

// Resolve applies human corrections to a pending review and removes it
// from the store. corrections maps normalized item names to the
// reviewed verdict; uncertain items absent from the map, or marked
// false, are dropped. A second submission for the same request fails
// with ErrNotFound.
func (s *Store) Resolve(requestID string, corrections map[string]bool) (*Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}

	normalized := make(map[string]bool, len(corrections))
	for name, veg := range corrections {
		normalized[parser.NormalizeName(name)] = veg
	}

	items := make([]classify.VegetarianItem, 0, len(pending.ConfidentItems)+len(pending.UncertainItems))
	for _, it := range pending.ConfidentItems {
		if it.Reasoning == "" {
			it.Reasoning = "Previously classified with high confidence"
		}
		items = append(items, it)
	}

	confirmed := 0
	for _, it := range pending.UncertainItems {
		if !normalized[parser.NormalizeName(it.Name)] {
			continue
		}
		confirmed++
		items = append(items, classify.VegetarianItem{
			Name:       it.Name,
			Price:      it.Price,
			Confidence: 1.0,
			Reasoning:  "Confirmed vegetarian by human review",
		})
	}

	delete(s.pending, requestID)

	total := 0.0
	for _, it := range items {
		total += it.Price
	}
	total = math.Round(total*100) / 100

	slog.Info("review: resolved",
		"request_id", requestID,
		"confirmed", confirmed,
		"rejected", len(pending.UncertainItems)-confirmed,
		"total", total)
	return &Resolution{Items: items, Total: total, ItemsParsed: pending.ItemsParsed}, nil
}
