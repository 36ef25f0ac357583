// Package keyword implements dictionary-based vegetarian classification.
// It is a pure in-memory matcher: two fixed keyword lists compiled once
// into word-boundary alternations, producing a tri-valued verdict.
package keyword

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Verdict is the tri-valued outcome of keyword matching.
type Verdict int

const (
	Unknown Verdict = iota
	Vegetarian
	NonVegetarian
)

func (v Verdict) String() string {
	switch v {
	case Vegetarian:
		return "vegetarian"
	case NonVegetarian:
		return "non_vegetarian"
	default:
		return "unknown"
	}
}

// Result carries the verdict, its fixed confidence, and the keywords
// that produced it.
type Result struct {
	Verdict         Verdict
	Confidence      float64
	MatchedKeywords []string
}

// Definite reports whether the engine reached a verdict at all.
func (r Result) Definite() bool { return r.Verdict != Unknown }

// IsVegetarian is only meaningful when Definite() is true.
func (r Result) IsVegetarian() bool { return r.Verdict == Vegetarian }

// Positive indicators. Explicit markers, vegetarian proteins, legumes,
// vegetables used as main-ingredient signals, cheeses, and dish names
// that are conventionally vegetarian.
var vegetarianKeywords = []string{
	"vegetarian", "veggie", "vegan", "plant-based", "meatless",
	"tofu", "tempeh", "seitan", "paneer", "halloumi",
	"beans", "lentils", "chickpea", "hummus", "falafel", "dal", "daal",
	"vegetable", "mushroom", "eggplant", "aubergine",
	"zucchini", "courgette", "spinach", "broccoli", "cauliflower",
	"cheese", "mozzarella", "parmesan", "cheddar", "feta",
	"caprese", "margherita", "primavera", "marinara", "alfredo",
	"garden", "harvest",
}

// Negative indicators: poultry, red meat, processed meats, seafood.
var nonVegetarianKeywords = []string{
	"chicken", "turkey", "duck", "poultry", "wing", "wings",
	"beef", "steak", "lamb", "pork", "veal", "venison", "bison",
	"burger", "meatball", "meatloaf", "meat",
	"bacon", "ham", "sausage", "salami", "pepperoni", "prosciutto",
	"chorizo", "pastrami", "corned beef",
	"fish", "salmon", "tuna", "cod", "halibut", "tilapia", "trout",
	"shrimp", "prawn", "lobster", "crab", "clam", "mussel", "oyster",
	"scallop", "calamari", "squid", "octopus", "seafood", "anchovy",
	"anchovies", "sardine",
	"ribs", "brisket", "roast", "carnitas", "pulled pork",
}

// Engine matches dish names against the fixed dictionaries.
type Engine struct {
	vegPattern    *regexp.Regexp
	nonVegPattern *regexp.Regexp
}

// NewEngine compiles both dictionaries. Multi-word entries match as
// contiguous tokens.
func NewEngine() *Engine {
	return &Engine{
		vegPattern:    compilePattern(vegetarianKeywords),
		nonVegPattern: compilePattern(nonVegetarianKeywords),
	}
}

// compilePattern builds a case-insensitive alternation over the
// keywords. Word boundaries are checked separately in uniqueMatches
// because regexp's \b is ASCII-only and would treat accented letters as
// boundaries. Longer keywords come first so "wings" is preferred over
// "wing" at the same position.
func compilePattern(keywords []string) *regexp.Regexp {
	escaped := make([]string, len(keywords))
	for i, kw := range keywords {
		escaped[i] = regexp.QuoteMeta(kw)
	}
	sort.SliceStable(escaped, func(i, j int) bool {
		return len(escaped[i]) > len(escaped[j])
	})
	return regexp.MustCompile(`(?i)(` + strings.Join(escaped, "|") + `)`)
}

// Classify matches the dish name (plus description, if any) against both
// dictionaries.
//
// Decision table:
//   - only non-veg matches:  non_vegetarian, confidence 0.9
//   - only veg matches:      vegetarian, confidence 0.8
//   - both match:            non_vegetarian, confidence 0.5 (meat wins;
//     "vegetable chicken stir-fry" is not vegetarian)
//   - no matches:            unknown, confidence 0
func (e *Engine) Classify(dishName, description string) Result {
	text := dishName
	if description != "" {
		text += " " + description
	}
	text = strings.ToLower(text)

	vegMatches := uniqueMatches(e.vegPattern, text)
	nonVegMatches := uniqueMatches(e.nonVegPattern, text)

	switch {
	case len(nonVegMatches) > 0 && len(vegMatches) == 0:
		return Result{
			Verdict:         NonVegetarian,
			Confidence:      0.9,
			MatchedKeywords: nonVegMatches,
		}
	case len(vegMatches) > 0 && len(nonVegMatches) == 0:
		return Result{
			Verdict:         Vegetarian,
			Confidence:      0.8,
			MatchedKeywords: vegMatches,
		}
	case len(vegMatches) > 0 && len(nonVegMatches) > 0:
		return Result{
			Verdict:         NonVegetarian,
			Confidence:      0.5,
			MatchedKeywords: append(nonVegMatches, vegMatches...),
		}
	default:
		return Result{Verdict: Unknown, Confidence: 0}
	}
}

// uniqueMatches returns the deduplicated matches of p in text that sit
// on word boundaries, sorted for deterministic output. Boundaries are
// checked rune-wise so accented letters count as word characters, the
// way the dictionaries expect ("chickenée" contains no keyword).
func uniqueMatches(p *regexp.Regexp, text string) []string {
	locs := p.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(locs))
	var out []string
	for _, loc := range locs {
		if isWordRune(runeBefore(text, loc[0])) || isWordRune(runeAfter(text, loc[1])) {
			continue
		}
		m := text[loc[0]:loc[1]]
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// runeBefore returns the rune ending at byte offset i, or RuneError at
// the start of the string.
func runeBefore(s string, i int) rune {
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return r
}

// runeAfter returns the rune starting at byte offset i, or RuneError at
// the end of the string.
func runeAfter(s string, i int) rune {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r
}
