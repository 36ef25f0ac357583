// Package parser extracts structured menu items from noisy OCR text.
//
// The extractor is a pure function: identical input always yields
// identical output, lines that cannot be interpreted are skipped, and an
// empty result is valid.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MenuItem is a single dish extracted from OCR text. Description is
// reserved for future use; Category carries the menu section the item
// appeared under, when one was detected.
type MenuItem struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
}

// NormalizedName returns the dedup/correction lookup key for the item.
func (m MenuItem) NormalizedName() string {
	return NormalizeName(m.Name)
}

// NormalizeName lowercases, trims, and collapses inner whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Price patterns in order of specificity. The first match wins.
var pricePatterns = []*regexp.Regexp{
	// $12.99 or $ 12.99
	regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d{3})*(?:\.\d{1,2})?)`),
	// 12.99$ or 12.99 $
	regexp.MustCompile(`(?i)(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*\$`),
	// 12.99 USD/EUR/GBP
	regexp.MustCompile(`(?i)(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*(?:USD|EUR|GBP)`),
	// Plain decimal at end of line (like "Burger 12.99")
	regexp.MustCompile(`(\d+\.\d{2})\s*$`),
}

// Reserved section labels. A line matching one of these (after
// punctuation stripping) is a header, never an item.
var sectionHeaders = map[string]bool{
	"appetizers": true, "starters": true, "main courses": true,
	"mains": true, "entrees": true, "desserts": true, "beverages": true,
	"drinks": true, "sides": true, "salads": true, "soups": true,
	"breakfast": true, "lunch": true, "dinner": true, "specials": true,
	"today's specials": true,
}

var (
	headerPunct     = regexp.MustCompile(`[:\-_=*#]`)
	edgeFillerRuns  = regexp.MustCompile(`^[.\-_]+|[.\-_]+$`)
	innerWhitespace = regexp.MustCompile(`\s+`)
	asterisks       = regexp.MustCompile(`\*+`)
	titleCaser      = cases.Title(language.English)
)

// Parse converts ordered OCR texts (one per image) into a deduplicated,
// order-preserving list of menu items. Duplicate names keep the highest
// price seen, at the position of their first occurrence.
func Parse(texts []string) []MenuItem {
	var all []MenuItem
	for _, text := range texts {
		all = append(all, parseSingle(text)...)
	}
	return deduplicate(all)
}

// parseSingle extracts items from one OCR text, tracking the rolling
// section header as the item category.
func parseSingle(text string) []MenuItem {
	var items []MenuItem
	currentCategory := ""

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isSectionHeader(line) {
			currentCategory = headerLabel(line)
			continue
		}

		if item, ok := extractItem(line, currentCategory); ok {
			items = append(items, item)
		}
	}
	return items
}

// isSectionHeader reports whether the line names a menu section: either
// a reserved label, or a short all-caps line. Lines carrying digits are
// never headers, so a shouted dish name with a price still parses as an
// item.
func isSectionHeader(line string) bool {
	normalized := strings.TrimSpace(headerPunct.ReplaceAllString(strings.ToLower(line), ""))
	if sectionHeaders[normalized] {
		return true
	}
	return isAllUpper(line) && len(strings.Fields(line)) <= 3
}

// isAllUpper reports whether the line is entirely uppercase: at least
// one letter, no lowercase letters, no digits.
func isAllUpper(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsDigit(r) || unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// headerLabel derives the category label stored on subsequent items.
func headerLabel(line string) string {
	stripped := strings.TrimSpace(headerPunct.ReplaceAllString(line, ""))
	return titleCaser.String(strings.ToLower(stripped))
}

// extractItem pulls a (name, price) pair out of a single line.
func extractItem(line, category string) (MenuItem, bool) {
	price, start, ok := findPrice(line)
	if !ok {
		return MenuItem{}, false
	}

	name := cleanName(line[:start])
	if !isValidDishName(name) {
		return MenuItem{}, false
	}

	return MenuItem{
		Name:     name,
		Price:    price,
		Category: category,
	}, true
}

// findPrice applies the price patterns in order and returns the parsed
// value with the match's start offset.
func findPrice(line string) (price float64, start int, ok bool) {
	for _, p := range pricePatterns {
		loc := p.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		raw := strings.ReplaceAll(line[loc[2]:loc[3]], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return round2(v), loc[0], true
	}
	return 0, 0, false
}

// cleanName strips filler runs of dots/dashes/underscores from the
// edges, drops asterisks, and collapses whitespace.
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	name = edgeFillerRuns.ReplaceAllString(name, "")
	name = asterisks.ReplaceAllString(name, "")
	name = innerWhitespace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// isValidDishName filters out OCR artifacts: too short, all digits, no
// letters, or no alphabetic token of length >= 2.
func isValidDishName(name string) bool {
	if len(name) < 3 {
		return false
	}
	if isAllDigits(strings.ReplaceAll(name, " ", "")) {
		return false
	}
	hasLetter := false
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	for _, w := range strings.Fields(name) {
		if len(w) >= 2 && isAllAlpha(w) {
			return true
		}
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isAllAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// deduplicate groups items by normalized name, keeping the highest
// price per group (ties keep the first occurrence). Output preserves
// the insertion order of surviving keys.
func deduplicate(items []MenuItem) []MenuItem {
	index := make(map[string]int, len(items))
	var out []MenuItem

	for _, item := range items {
		key := item.NormalizedName()
		if i, seen := index[key]; seen {
			if item.Price > out[i].Price {
				out[i] = item
			}
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
