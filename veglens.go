// Package veglens analyses OCR text from restaurant menus, finds the
// vegetarian dishes, and totals their prices. Uncertain classifications
// are parked for human review and reconciled on submission.
package veglens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veglens/veglens/classify"
	"github.com/veglens/veglens/keyword"
	"github.com/veglens/veglens/llm"
	"github.com/veglens/veglens/parser"
	"github.com/veglens/veglens/rag"
	"github.com/veglens/veglens/review"
	"github.com/veglens/veglens/store"
)

// MaxTexts is the maximum number of OCR texts accepted per analysis.
const MaxTexts = 5

// Engine is the main entry point for menu analysis.
type Engine interface {
	// AnalyzeTexts classifies the dishes found in 1 to 5 OCR texts and
	// returns either a final result or one pending human review.
	AnalyzeTexts(ctx context.Context, texts []string) (*Analysis, error)

	// AnalyzePDF extracts text from a PDF menu and analyses it.
	AnalyzePDF(ctx context.Context, path string) (*Analysis, error)

	// SubmitReview applies human corrections to a pending analysis and
	// returns the final result.
	SubmitReview(ctx context.Context, requestID string, corrections map[string]bool) (*Analysis, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Analysis is the outcome of a menu analysis or a review resolution.
// Status is "complete" when every item was decided, "needs_review" when
// UncertainItems await human confirmation; in the latter case Total is
// the partial sum over VegetarianItems only.
type Analysis struct {
	RequestID       string
	Status          string
	VegetarianItems []classify.VegetarianItem
	UncertainItems  []classify.UncertainItem
	Total           float64
	ItemsParsed     int
}

const (
	StatusComplete    = "complete"
	StatusNeedsReview = "needs_review"
)

// MarshalJSON renders the two wire envelopes: a final result carries
// vegetarian_items and total_sum; a needs-review result carries
// confident_items, uncertain_items and partial_sum.
func (a Analysis) MarshalJSON() ([]byte, error) {
	confident := a.VegetarianItems
	if confident == nil {
		confident = []classify.VegetarianItem{}
	}

	if a.Status == StatusNeedsReview {
		uncertain := a.UncertainItems
		if uncertain == nil {
			uncertain = []classify.UncertainItem{}
		}
		return json.Marshal(struct {
			Status         string                    `json:"status"`
			RequestID      string                    `json:"request_id"`
			ConfidentItems []classify.VegetarianItem `json:"confident_items"`
			UncertainItems []classify.UncertainItem  `json:"uncertain_items"`
			PartialSum     float64                   `json:"partial_sum"`
		}{a.Status, a.RequestID, confident, uncertain, a.Total})
	}

	return json.Marshal(struct {
		RequestID       string                    `json:"request_id"`
		VegetarianItems []classify.VegetarianItem `json:"vegetarian_items"`
		TotalSum        float64                   `json:"total_sum"`
	}{a.RequestID, confident, a.Total})
}

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID returns a context carrying the request id assigned at
// the transport boundary.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id carried by the context,
// or "" when none was assigned.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg         Config
	store       *store.Store
	index       *rag.Index
	coordinator *classify.Coordinator
	reviews     *review.Store
}

// New creates an engine with the given configuration.
func New(cfg Config) (Engine, error) {
	dbPath := cfg.resolveDBPath()

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 384
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	index := rag.New(s, embedLLM, cfg.SeedPath)
	coordinator := classify.NewCoordinator(
		index,
		classify.NewDishClassifier(chatLLM, cfg.Chat.Model),
		keyword.NewEngine(),
		classify.Config{
			ConfidenceThreshold:     cfg.ConfidenceThreshold,
			TopK:                    cfg.TopK,
			ItemConcurrency:         cfg.ItemConcurrency,
			FinalizeUncertainNonVeg: cfg.FinalizeUncertainNonVeg,
		},
	)

	return &engine{
		cfg:         cfg,
		store:       s,
		index:       index,
		coordinator: coordinator,
		reviews:     review.NewStore(),
	}, nil
}

// AnalyzeTexts runs the full pipeline: parse, classify, route.
func (e *engine) AnalyzeTexts(ctx context.Context, texts []string) (*Analysis, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: at least one text is required", ErrInvalidInput)
	}
	if len(texts) > MaxTexts {
		return nil, fmt.Errorf("%w: at most %d texts per request, got %d", ErrInvalidInput, MaxTexts, len(texts))
	}

	empty := true
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			empty = false
			break
		}
	}
	if empty {
		return nil, ErrNoText
	}

	start := time.Now()
	items := parser.Parse(texts)
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	slog.Info("analyze: menu parsed", "texts", len(texts), "items", len(items))

	outcome, err := e.coordinator.Run(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("classifying items: %w", err)
	}

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	analysis := &Analysis{
		RequestID:       requestID,
		Status:          StatusComplete,
		VegetarianItems: outcome.ConfidentItems,
		Total:           outcome.Sum,
		ItemsParsed:     len(items),
	}

	if outcome.NeedsReview {
		analysis.Status = StatusNeedsReview
		analysis.UncertainItems = outcome.UncertainItems
		e.reviews.Put(&review.PendingReview{
			RequestID:      requestID,
			ConfidentItems: outcome.ConfidentItems,
			UncertainItems: outcome.UncertainItems,
			PartialSum:     outcome.Sum,
			ItemsParsed:    len(items),
			CreatedAt:      time.Now(),
		})
	}

	slog.Info("analyze: done",
		"request_id", requestID,
		"status", analysis.Status,
		"total", analysis.Total,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return analysis, nil
}

// AnalyzePDF extracts per-page text from a PDF menu and analyses it.
// Pages beyond MaxTexts are folded into the last text.
func (e *engine) AnalyzePDF(ctx context.Context, path string) (*Analysis, error) {
	pages, err := parser.ExtractPDFText(path)
	if err != nil {
		return nil, fmt.Errorf("extracting PDF text: %w", err)
	}
	if len(pages) > MaxTexts {
		rest := strings.Join(pages[MaxTexts-1:], "\n")
		pages = append(pages[:MaxTexts-1], rest)
	}
	return e.AnalyzeTexts(ctx, pages)
}

// SubmitReview reconciles human corrections with the parked outcome.
func (e *engine) SubmitReview(_ context.Context, requestID string, corrections map[string]bool) (*Analysis, error) {
	if len(corrections) == 0 {
		return nil, ErrNoCorrections
	}

	res, err := e.reviews.Resolve(requestID, corrections)
	if err != nil {
		if errors.Is(err, review.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrReviewNotFound, requestID)
		}
		return nil, err
	}

	return &Analysis{
		RequestID:       requestID,
		Status:          StatusComplete,
		VegetarianItems: res.Items,
		Total:           res.Total,
		ItemsParsed:     res.ItemsParsed,
	}, nil
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}
