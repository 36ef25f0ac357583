package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/veglens/veglens/store"
)

// seedFile is the JSON seed document shape.
type seedFile struct {
	Dishes []seedDish `json:"dishes"`
}

type seedDish struct {
	Name         string `json:"name"`
	IsVegetarian bool   `json:"is_vegetarian"`
	Description  string `json:"description,omitempty"`
}

// LoadSeed reads a knowledge-base seed file. JSON documents use the
// {"dishes": [...]} shape; .xlsx spreadsheets use name, is_vegetarian
// and description columns.
func LoadSeed(path string) ([]store.Dish, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return loadSeedXLSX(path)
	default:
		return loadSeedJSON(path)
	}
}

func loadSeedJSON(path string) ([]store.Dish, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed JSON: %w", err)
	}

	dishes := make([]store.Dish, 0, len(f.Dishes))
	for _, d := range f.Dishes {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		dishes = append(dishes, store.Dish{
			Name:         d.Name,
			IsVegetarian: d.IsVegetarian,
			Description:  d.Description,
		})
	}
	return dishes, nil
}

// loadSeedXLSX reads dishes from the first sheet of a spreadsheet. A
// header row (first cell "name") is skipped.
func loadSeedXLSX(path string) ([]store.Dish, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	var dishes []store.Dish
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		if i == 0 && strings.EqualFold(name, "name") {
			continue
		}

		dish := store.Dish{
			Name:         name,
			IsVegetarian: parseBoolCell(row[1]),
		}
		if len(row) > 2 {
			dish.Description = strings.TrimSpace(row[2])
		}
		dishes = append(dishes, dish)
	}
	return dishes, nil
}

func parseBoolCell(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "true", "yes", "y", "1", "vegetarian":
		return true
	default:
		return false
	}
}
