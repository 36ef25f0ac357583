package classify

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/veglens/veglens/keyword"
	"github.com/veglens/veglens/parser"
	"github.com/veglens/veglens/rag"
)

// fakeEvidence serves canned evidence per dish name.
type fakeEvidence struct {
	byName map[string][]rag.Evidence
	err    error
}

func (f *fakeEvidence) Search(_ context.Context, query string, _ int) ([]rag.Evidence, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byName[query], nil
}

// fakeLLM serves canned verdicts per dish name; missing names return
// nil, simulating an unavailable model.
type fakeLLM struct {
	byName map[string]*LLMVerdict
}

func (f *fakeLLM) Classify(_ context.Context, name, _ string, _ []rag.Evidence) *LLMVerdict {
	return f.byName[name]
}

func newTestCoordinator(ev *fakeEvidence, llm *fakeLLM, cfg Config) *Coordinator {
	return NewCoordinator(ev, llm, keyword.NewEngine(), cfg)
}

func TestCombineLLMWithRAGBoost(t *testing.T) {
	llmVerdict := &LLMVerdict{IsVegetarian: true, Confidence: 0.85, Reasoning: "Plant based"}
	evidence := []rag.Evidence{{DishName: "Veggie Bowl", IsVegetarian: true, SimilarityScore: 0.9}}

	v := combine(llmVerdict, keyword.Result{}, evidence)
	if v.Method != MethodLLMRAG {
		t.Fatalf("method = %q, want %q", v.Method, MethodLLMRAG)
	}
	if v.Confidence != 0.95 {
		t.Errorf("boosted confidence = %v, want 0.95", v.Confidence)
	}
	if !v.IsVegetarian {
		t.Error("verdict flipped")
	}
}

func TestCombineBoostCappedAtOne(t *testing.T) {
	llmVerdict := &LLMVerdict{IsVegetarian: true, Confidence: 0.95, Reasoning: "x"}
	evidence := []rag.Evidence{{DishName: "Salad", IsVegetarian: true, SimilarityScore: 0.99}}

	v := combine(llmVerdict, keyword.Result{}, evidence)
	if v.Confidence != 1.0 {
		t.Errorf("confidence = %v, want capped at 1.0", v.Confidence)
	}
}

func TestCombineNoBoostOnDisagreeingEvidence(t *testing.T) {
	llmVerdict := &LLMVerdict{IsVegetarian: true, Confidence: 0.8, Reasoning: "x"}
	evidence := []rag.Evidence{{DishName: "Chicken Salad", IsVegetarian: false, SimilarityScore: 0.9}}

	v := combine(llmVerdict, keyword.Result{}, evidence)
	if v.Confidence != 0.8 {
		t.Errorf("confidence = %v, want unboosted 0.8", v.Confidence)
	}
}

func TestCombineKeywordConflictCapsConfidence(t *testing.T) {
	llmVerdict := &LLMVerdict{IsVegetarian: true, Confidence: 0.9, Reasoning: "Looks vegetarian"}
	kw := keyword.Result{
		Verdict:         keyword.NonVegetarian,
		Confidence:      0.9,
		MatchedKeywords: []string{"chicken"},
	}

	v := combine(llmVerdict, kw, nil)
	if v.Method != MethodCombined {
		t.Fatalf("method = %q, want %q", v.Method, MethodCombined)
	}
	if v.Confidence != 0.6 {
		t.Errorf("capped confidence = %v, want 0.6", v.Confidence)
	}
	if !v.IsVegetarian {
		t.Error("LLM verdict should still lead despite the cap")
	}
	if !strings.Contains(v.Reasoning, "keyword analysis suggests otherwise") {
		t.Errorf("reasoning missing conflict note: %q", v.Reasoning)
	}
}

func TestCombineKeywordConflictKeepsLowerLLMConfidence(t *testing.T) {
	llmVerdict := &LLMVerdict{IsVegetarian: false, Confidence: 0.4, Reasoning: "Unsure"}
	kw := keyword.Result{
		Verdict:         keyword.Vegetarian,
		Confidence:      0.8,
		MatchedKeywords: []string{"tofu"},
	}

	v := combine(llmVerdict, kw, nil)
	if v.Confidence != 0.4 {
		t.Errorf("confidence = %v, want min(0.4, 0.6) = 0.4", v.Confidence)
	}
}

func TestCombineKeywordFallback(t *testing.T) {
	kw := keyword.Result{
		Verdict:         keyword.NonVegetarian,
		Confidence:      0.9,
		MatchedKeywords: []string{"bacon", "ham"},
	}

	v := combine(nil, kw, nil)
	if v.Method != MethodKeyword {
		t.Fatalf("method = %q, want %q", v.Method, MethodKeyword)
	}
	if v.IsVegetarian || v.Confidence != 0.9 {
		t.Errorf("verdict = %+v", v)
	}
	if v.Reasoning != "Keyword match: bacon, ham" {
		t.Errorf("reasoning = %q", v.Reasoning)
	}
}

func TestCombineRAGFallback(t *testing.T) {
	evidence := []rag.Evidence{{DishName: "Margherita Pizza", IsVegetarian: true, SimilarityScore: 0.9}}

	v := combine(nil, keyword.Result{}, evidence)
	if v.Method != MethodRAG {
		t.Fatalf("method = %q, want %q", v.Method, MethodRAG)
	}
	if !v.IsVegetarian {
		t.Error("evidence label lost")
	}
	if v.Confidence != 0.9*0.8 {
		t.Errorf("confidence = %v, want %v", v.Confidence, 0.9*0.8)
	}
	if v.Reasoning != "Similar to known dish: Margherita Pizza" {
		t.Errorf("reasoning = %q", v.Reasoning)
	}
}

func TestCombineRAGFallbackNeedsStrongSimilarity(t *testing.T) {
	evidence := []rag.Evidence{{DishName: "Something", IsVegetarian: true, SimilarityScore: 0.8}}

	v := combine(nil, keyword.Result{}, evidence)
	if v.Method != MethodDefault {
		t.Fatalf("similarity 0.8 must not trigger the RAG fallback, got %q", v.Method)
	}
}

func TestCombineDefault(t *testing.T) {
	v := combine(nil, keyword.Result{}, nil)
	if v.Method != MethodDefault {
		t.Fatalf("method = %q, want %q", v.Method, MethodDefault)
	}
	if v.IsVegetarian {
		t.Error("default verdict must be non-vegetarian")
	}
	if v.Confidence != 0.3 {
		t.Errorf("confidence = %v, want 0.3", v.Confidence)
	}
}

func TestRunPartitionsBatch(t *testing.T) {
	items := []parser.MenuItem{
		{Name: "Garden Salad", Price: 8.50},
		{Name: "Mystery Stew", Price: 12.00},
		{Name: "Beef Burger", Price: 15.00},
	}
	ev := &fakeEvidence{byName: map[string][]rag.Evidence{}}
	llm := &fakeLLM{byName: map[string]*LLMVerdict{
		"Garden Salad": {IsVegetarian: true, Confidence: 0.9, Reasoning: "Vegetables only"},
		"Mystery Stew": {IsVegetarian: true, Confidence: 0.5, Reasoning: "Could contain meat stock"},
		"Beef Burger":  {IsVegetarian: false, Confidence: 0.95, Reasoning: "Beef patty"},
	}}

	out, err := newTestCoordinator(ev, llm, Config{}).Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !out.NeedsReview {
		t.Error("uncertain item should trigger review")
	}
	if len(out.ConfidentItems) != 1 || out.ConfidentItems[0].Name != "Garden Salad" {
		t.Fatalf("confident items = %+v", out.ConfidentItems)
	}
	if len(out.UncertainItems) != 1 || out.UncertainItems[0].Name != "Mystery Stew" {
		t.Fatalf("uncertain items = %+v", out.UncertainItems)
	}
	if out.Sum != 8.50 {
		t.Errorf("partial sum = %v, want 8.50", out.Sum)
	}
}

func TestRunAllConfident(t *testing.T) {
	items := []parser.MenuItem{
		{Name: "Garden Salad", Price: 8.50},
		{Name: "Caprese", Price: 10.25},
	}
	llm := &fakeLLM{byName: map[string]*LLMVerdict{
		"Garden Salad": {IsVegetarian: true, Confidence: 0.9, Reasoning: "x"},
		"Caprese":      {IsVegetarian: true, Confidence: 0.85, Reasoning: "y"},
	}}

	out, err := newTestCoordinator(&fakeEvidence{}, llm, Config{}).Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.NeedsReview {
		t.Error("no uncertain items, review must not trigger")
	}
	if out.Sum != 18.75 {
		t.Errorf("sum = %v, want 18.75", out.Sum)
	}
}

func TestRunUncertainNonVegetarianRoutedToReview(t *testing.T) {
	items := []parser.MenuItem{{Name: "House Special", Price: 9.00}}
	llm := &fakeLLM{byName: map[string]*LLMVerdict{}}

	// No LLM, no keywords, no evidence: the default verdict is
	// non-vegetarian at 0.3, which is below threshold.
	out, err := newTestCoordinator(&fakeEvidence{}, llm, Config{}).Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.UncertainItems) != 1 {
		t.Fatalf("uncertain items = %+v", out.UncertainItems)
	}

	out, err = newTestCoordinator(&fakeEvidence{}, llm, Config{FinalizeUncertainNonVeg: true}).
		Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.UncertainItems) != 0 || out.NeedsReview {
		t.Errorf("FinalizeUncertainNonVeg should discard the item, got %+v", out.UncertainItems)
	}
}

func TestRunEvidenceFailureDegrades(t *testing.T) {
	items := []parser.MenuItem{{Name: "Tofu Bowl", Price: 7.00}}
	ev := &fakeEvidence{err: fmt.Errorf("index offline")}
	llm := &fakeLLM{byName: map[string]*LLMVerdict{}}

	out, err := newTestCoordinator(ev, llm, Config{}).Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run must not fail on evidence errors: %v", err)
	}
	// Keywords still fire: tofu is a definite vegetarian marker.
	if len(out.ConfidentItems) != 1 {
		t.Fatalf("confident items = %+v, uncertain = %+v", out.ConfidentItems, out.UncertainItems)
	}
	if out.ConfidentItems[0].Confidence != 0.8 {
		t.Errorf("keyword confidence = %v, want 0.8", out.ConfidentItems[0].Confidence)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	_, err := newTestCoordinator(&fakeEvidence{}, &fakeLLM{}, Config{}).Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestRunConcurrentItems(t *testing.T) {
	var items []parser.MenuItem
	llm := &fakeLLM{byName: map[string]*LLMVerdict{}}
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("Tofu Dish %d", i)
		items = append(items, parser.MenuItem{Name: name, Price: 5.00})
		llm.byName[name] = &LLMVerdict{IsVegetarian: true, Confidence: 0.9, Reasoning: "x"}
	}

	out, err := newTestCoordinator(&fakeEvidence{}, llm, Config{ItemConcurrency: 4}).
		Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.ConfidentItems) != 20 {
		t.Fatalf("got %d confident items, want 20", len(out.ConfidentItems))
	}
	// Output order must follow input order regardless of scheduling.
	for i, it := range out.ConfidentItems {
		if it.Name != items[i].Name {
			t.Fatalf("item %d = %q, want %q", i, it.Name, items[i].Name)
		}
	}
	if out.Sum != 100.00 {
		t.Errorf("sum = %v, want 100.00", out.Sum)
	}
}

func TestSumPricesRounding(t *testing.T) {
	items := []VegetarianItem{
		{Price: 0.1}, {Price: 0.2}, {Price: 0.3},
	}
	if got := SumPrices(items); got != 0.6 {
		t.Errorf("SumPrices = %v, want 0.6", got)
	}
}
