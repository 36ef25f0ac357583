// Package classify combines semantic evidence, a language-model verdict
// and keyword matching into a single confidence-weighted decision per
// dish, then routes batches into confident or needs-review outcomes.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/veglens/veglens/llm"
	"github.com/veglens/veglens/rag"
)

// LLMVerdict is the parsed JSON verdict from the language model.
type LLMVerdict struct {
	IsVegetarian bool
	Confidence   float64
	Reasoning    string
}

const systemPrompt = "You are a helpful assistant that classifies dishes as " +
	"vegetarian or non-vegetarian. Always respond with valid JSON."

const promptTemplate = `You are a vegetarian dish classifier. Analyze the following dish and determine if it is vegetarian.

Dish name: %s
%s
%s

IMPORTANT RULES:
- Vegetarian means NO meat, poultry, fish, or seafood
- Eggs and dairy ARE acceptable for vegetarian dishes
- If you're unsure, be conservative and mark as non-vegetarian
- Consider the dish name carefully - some names are misleading

Respond with ONLY valid JSON in this exact format:
{
  "is_vegetarian": true or false,
  "confidence": 0.0 to 1.0,
  "reasoning": "Brief explanation in one sentence"
}`

// DishClassifier asks a chat model whether a dish is vegetarian.
type DishClassifier struct {
	chat  llm.Provider
	model string
}

// NewDishClassifier creates a classifier over the given chat provider.
func NewDishClassifier(chat llm.Provider, model string) *DishClassifier {
	return &DishClassifier{chat: chat, model: model}
}

// Classify prompts the model with the dish and up to the top-3 evidence
// items. Any failure — transport, timeout, malformed or out-of-range
// JSON — returns nil; the coordinator falls back to other signals.
func (c *DishClassifier) Classify(ctx context.Context, name, description string, evidence []rag.Evidence) *LLMVerdict {
	resp, err := c.chat.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(name, description, evidence)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		slog.Warn("classify: llm call failed", "dish", name, "error", err)
		return nil
	}

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		slog.Warn("classify: llm response unusable",
			"dish", name, "error", err, "content", truncate(resp.Content, 200))
		return nil
	}
	return verdict
}

// buildPrompt renders the user message: dish name, optional description
// and up to three evidence lines.
func buildPrompt(name, description string, evidence []rag.Evidence) string {
	descSection := ""
	if description != "" {
		descSection = "Description: " + description
	}

	evSection := ""
	if len(evidence) > 0 {
		var b strings.Builder
		b.WriteString("Similar dishes from our database:")
		for i, ev := range evidence {
			if i == 3 {
				break
			}
			label := "non-vegetarian"
			if ev.IsVegetarian {
				label = "vegetarian"
			}
			fmt.Fprintf(&b, "\n- %s (%s, similarity: %.2f)", ev.DishName, label, ev.SimilarityScore)
		}
		evSection = b.String()
	}

	return fmt.Sprintf(promptTemplate, name, descSection, evSection)
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// rawVerdict uses pointers so missing fields are distinguishable from
// zero values.
type rawVerdict struct {
	IsVegetarian *bool    `json:"is_vegetarian"`
	Confidence   *float64 `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
}

// parseVerdict validates the model's JSON verdict. The body may be
// wrapped in a markdown fence. Missing fields get conservative
// defaults; a confidence outside [0,1] is a schema violation.
func parseVerdict(content string) (*LLMVerdict, error) {
	content = strings.TrimSpace(content)
	if m := codeBlockRe.FindStringSubmatch(content); len(m) > 1 {
		content = strings.TrimSpace(m[1])
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing verdict JSON: %w", err)
	}

	v := &LLMVerdict{
		Confidence: 0.5,
		Reasoning:  "No reasoning provided",
	}
	if raw.IsVegetarian != nil {
		v.IsVegetarian = *raw.IsVegetarian
	}
	if raw.Confidence != nil {
		if *raw.Confidence < 0 || *raw.Confidence > 1 {
			return nil, fmt.Errorf("confidence %v out of range", *raw.Confidence)
		}
		v.Confidence = *raw.Confidence
	}
	if raw.Reasoning != "" {
		v.Reasoning = raw.Reasoning
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
