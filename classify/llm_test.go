package classify

import (
	"strings"
	"testing"

	"github.com/veglens/veglens/rag"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    LLMVerdict
		wantErr bool
	}{
		{
			name:    "plain JSON",
			content: `{"is_vegetarian": true, "confidence": 0.9, "reasoning": "All plant based"}`,
			want:    LLMVerdict{IsVegetarian: true, Confidence: 0.9, Reasoning: "All plant based"},
		},
		{
			name:    "fenced JSON",
			content: "```json\n{\"is_vegetarian\": false, \"confidence\": 0.8, \"reasoning\": \"Contains beef\"}\n```",
			want:    LLMVerdict{IsVegetarian: false, Confidence: 0.8, Reasoning: "Contains beef"},
		},
		{
			name:    "bare fence",
			content: "```\n{\"is_vegetarian\": true, \"confidence\": 1.0, \"reasoning\": \"ok\"}\n```",
			want:    LLMVerdict{IsVegetarian: true, Confidence: 1.0, Reasoning: "ok"},
		},
		{
			name:    "missing confidence defaults",
			content: `{"is_vegetarian": true, "reasoning": "probably"}`,
			want:    LLMVerdict{IsVegetarian: true, Confidence: 0.5, Reasoning: "probably"},
		},
		{
			name:    "missing verdict defaults to non-vegetarian",
			content: `{"confidence": 0.7}`,
			want:    LLMVerdict{IsVegetarian: false, Confidence: 0.7, Reasoning: "No reasoning provided"},
		},
		{
			name:    "confidence above range",
			content: `{"is_vegetarian": true, "confidence": 1.5, "reasoning": "x"}`,
			wantErr: true,
		},
		{
			name:    "negative confidence",
			content: `{"is_vegetarian": true, "confidence": -0.1}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			content: "The dish is vegetarian.",
			wantErr: true,
		},
		{
			name:    "non-object JSON",
			content: "true",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseVerdict(%q) = %+v, want error", tt.content, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVerdict(%q): %v", tt.content, err)
			}
			if *got != tt.want {
				t.Errorf("parseVerdict(%q) = %+v, want %+v", tt.content, *got, tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	evidence := []rag.Evidence{
		{DishName: "Greek Salad", IsVegetarian: true, SimilarityScore: 0.92},
		{DishName: "Caesar Salad", IsVegetarian: false, SimilarityScore: 0.81},
		{DishName: "Caprese", IsVegetarian: true, SimilarityScore: 0.75},
		{DishName: "Cobb Salad", IsVegetarian: false, SimilarityScore: 0.6},
	}

	prompt := buildPrompt("Garden Salad", "mixed greens", evidence)

	if !strings.Contains(prompt, "Dish name: Garden Salad") {
		t.Error("dish name missing from prompt")
	}
	if !strings.Contains(prompt, "Description: mixed greens") {
		t.Error("description missing from prompt")
	}
	if !strings.Contains(prompt, "- Greek Salad (vegetarian, similarity: 0.92)") {
		t.Errorf("evidence line malformed:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- Caesar Salad (non-vegetarian, similarity: 0.81)") {
		t.Errorf("non-vegetarian label malformed:\n%s", prompt)
	}
	if strings.Contains(prompt, "Cobb Salad") {
		t.Error("prompt should carry at most three evidence items")
	}
}

func TestBuildPromptNoDescriptionNoEvidence(t *testing.T) {
	prompt := buildPrompt("Mystery Dish", "", nil)
	if strings.Contains(prompt, "Description:") {
		t.Error("empty description rendered a Description line")
	}
	if strings.Contains(prompt, "Similar dishes") {
		t.Error("empty evidence rendered an evidence block")
	}
	if !strings.Contains(prompt, "Respond with ONLY valid JSON") {
		t.Error("format instructions missing")
	}
}
