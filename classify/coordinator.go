package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veglens/veglens/keyword"
	"github.com/veglens/veglens/parser"
	"github.com/veglens/veglens/rag"
)

// Method tags the provenance of a verdict.
type Method string

const (
	MethodLLMRAG   Method = "llm+rag"
	MethodCombined Method = "combined"
	MethodKeyword  Method = "keyword"
	MethodRAG      Method = "rag"
	MethodDefault  Method = "default"
)

// Verdict is the final classification decision for one dish.
type Verdict struct {
	IsVegetarian bool    `json:"is_vegetarian"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	Method       Method  `json:"method"`
}

// VegetarianItem is a confidently vegetarian dish in an outcome.
type VegetarianItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// UncertainItem is a dish whose verdict fell below the confidence
// threshold and needs human review.
type UncertainItem struct {
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

// Outcome is the result of classifying a batch of menu items. When
// NeedsReview is set, Sum is the partial total over ConfidentItems;
// otherwise it is the final vegetarian total.
type Outcome struct {
	NeedsReview    bool
	ConfidentItems []VegetarianItem
	UncertainItems []UncertainItem
	Sum            float64
}

// EvidenceSource supplies semantic-similarity evidence for a dish name.
type EvidenceSource interface {
	Search(ctx context.Context, query string, topK int) ([]rag.Evidence, error)
}

// LLMClassifier produces a verdict from the language model, or nil when
// the model is unavailable or its answer is unusable.
type LLMClassifier interface {
	Classify(ctx context.Context, name, description string, evidence []rag.Evidence) *LLMVerdict
}

// Config holds coordinator tuning.
type Config struct {
	// ConfidenceThreshold splits confident from uncertain verdicts.
	ConfidenceThreshold float64
	// TopK is the evidence fan-in per dish.
	TopK int
	// ItemConcurrency bounds parallel item classification.
	ItemConcurrency int
	// FinalizeUncertainNonVeg discards low-confidence non-vegetarian
	// items instead of routing them to review.
	FinalizeUncertainNonVeg bool
}

// Coordinator runs the per-item signal triad and batch routing.
type Coordinator struct {
	evidence EvidenceSource
	llm      LLMClassifier
	keywords *keyword.Engine
	cfg      Config
}

// NewCoordinator creates a coordinator. Zero config values get
// defaults: threshold 0.7, top-5 evidence, sequential items.
func NewCoordinator(evidence EvidenceSource, llmc LLMClassifier, keywords *keyword.Engine, cfg Config) *Coordinator {
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.ItemConcurrency <= 0 {
		cfg.ItemConcurrency = 1
	}
	return &Coordinator{evidence: evidence, llm: llmc, keywords: keywords, cfg: cfg}
}

// Run classifies every item and partitions the batch. It fails only on
// an empty input; classification trouble degrades to default verdicts.
func (c *Coordinator) Run(ctx context.Context, items []parser.MenuItem) (*Outcome, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items to classify")
	}

	start := time.Now()
	verdicts := make([]Verdict, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ItemConcurrency)
	for i, item := range items {
		g.Go(func() error {
			verdicts[i] = c.classifyItem(gctx, item)
			return nil
		})
	}
	g.Wait()

	outcome := c.partition(items, verdicts)

	slog.Info("classification completed",
		"items", len(items),
		"confident", len(outcome.ConfidentItems),
		"uncertain", len(outcome.UncertainItems),
		"sum", outcome.Sum,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return outcome, nil
}

// classifyItem gathers the three signals for one dish and combines
// them. Evidence failures degrade to an empty evidence block.
func (c *Coordinator) classifyItem(ctx context.Context, item parser.MenuItem) Verdict {
	evidence, err := c.evidence.Search(ctx, item.Name, c.cfg.TopK)
	if err != nil {
		slog.Warn("classify: evidence lookup failed", "dish", item.Name, "error", err)
		evidence = nil
	}

	llmVerdict := c.llm.Classify(ctx, item.Name, item.Description, evidence)
	kw := c.keywords.Classify(item.Name, item.Description)

	return combine(llmVerdict, kw, evidence)
}

// combine merges the three signals into one verdict.
//
// Priority: the LLM leads when it answered, dampened by a strong
// keyword disagreement and boosted by agreeing evidence. Without the
// LLM, a definite keyword verdict wins, then strong evidence, then the
// conservative default.
func combine(llmVerdict *LLMVerdict, kw keyword.Result, evidence []rag.Evidence) Verdict {
	if llmVerdict != nil {
		if kw.Definite() && kw.Confidence >= 0.8 && kw.IsVegetarian() != llmVerdict.IsVegetarian {
			return Verdict{
				IsVegetarian: llmVerdict.IsVegetarian,
				Confidence:   math.Min(llmVerdict.Confidence, 0.6),
				Reasoning:    llmVerdict.Reasoning + " (Note: keyword analysis suggests otherwise)",
				Method:       MethodCombined,
			}
		}

		confidence := llmVerdict.Confidence
		if len(evidence) > 0 {
			top := evidence[0]
			if top.SimilarityScore > 0.7 && top.IsVegetarian == llmVerdict.IsVegetarian {
				confidence = math.Min(confidence+0.1, 1.0)
			}
		}
		return Verdict{
			IsVegetarian: llmVerdict.IsVegetarian,
			Confidence:   round2(confidence),
			Reasoning:    llmVerdict.Reasoning,
			Method:       MethodLLMRAG,
		}
	}

	if kw.Definite() {
		return Verdict{
			IsVegetarian: kw.IsVegetarian(),
			Confidence:   kw.Confidence,
			Reasoning:    "Keyword match: " + joinKeywords(kw.MatchedKeywords),
			Method:       MethodKeyword,
		}
	}

	if len(evidence) > 0 && evidence[0].SimilarityScore > 0.8 {
		top := evidence[0]
		return Verdict{
			IsVegetarian: top.IsVegetarian,
			Confidence:   top.SimilarityScore * 0.8,
			Reasoning:    "Similar to known dish: " + top.DishName,
			Method:       MethodRAG,
		}
	}

	return Verdict{
		IsVegetarian: false,
		Confidence:   0.3,
		Reasoning:    "Unable to determine with confidence, defaulting to non-vegetarian",
		Method:       MethodDefault,
	}
}

// partition splits classified items into confident vegetarian and
// uncertain sets. Confident non-vegetarian items are discarded.
func (c *Coordinator) partition(items []parser.MenuItem, verdicts []Verdict) *Outcome {
	out := &Outcome{}

	for i, item := range items {
		v := verdicts[i]
		switch {
		case v.IsVegetarian && v.Confidence >= c.cfg.ConfidenceThreshold:
			out.ConfidentItems = append(out.ConfidentItems, VegetarianItem{
				Name:       item.Name,
				Price:      item.Price,
				Confidence: v.Confidence,
				Reasoning:  v.Reasoning,
			})
		case v.Confidence < c.cfg.ConfidenceThreshold:
			// Low-confidence non-vegetarian verdicts also go to review
			// unless configured away.
			if !v.IsVegetarian && c.cfg.FinalizeUncertainNonVeg {
				continue
			}
			out.UncertainItems = append(out.UncertainItems, UncertainItem{
				Name:       item.Name,
				Price:      item.Price,
				Confidence: v.Confidence,
				Evidence:   []string{v.Reasoning},
			})
		}
	}

	out.NeedsReview = len(out.UncertainItems) > 0
	out.Sum = SumPrices(out.ConfidentItems)
	return out
}

// SumPrices totals item prices, rounded once to 2 decimal places.
func SumPrices(items []VegetarianItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Price
	}
	return round2(total)
}

func joinKeywords(keywords []string) string {
	out := ""
	for i, kw := range keywords {
		if i > 0 {
			out += ", "
		}
		out += kw
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
