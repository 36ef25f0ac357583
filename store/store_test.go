package store

import (
	"context"
	"path/filepath"
	"testing"
)

const testDim = 4

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), testDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CountDishes(ctx)
	if err != nil {
		t.Fatalf("CountDishes: %v", err)
	}
	if n != 0 {
		t.Fatalf("fresh store has %d dishes, want 0", n)
	}

	dishes := []Dish{
		{Name: "Greek Salad", IsVegetarian: true, Description: "feta, olives, cucumber"},
		{Name: "Grilled Chicken", IsVegetarian: false},
	}
	embeddings := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	}
	if err := s.InsertDishes(ctx, dishes, embeddings); err != nil {
		t.Fatalf("InsertDishes: %v", err)
	}

	n, err = s.CountDishes(ctx)
	if err != nil {
		t.Fatalf("CountDishes: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Dishes != 2 || st.Embeddings != 2 {
		t.Errorf("stats = %+v, want 2/2", st)
	}
}

func TestInsertDishesMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InsertDishes(ctx, []Dish{{Name: "Soup"}}, nil)
	if err == nil {
		t.Fatal("expected error on dish/embedding count mismatch")
	}

	err = s.InsertDishes(ctx, []Dish{{Name: "Soup"}}, [][]float32{{1, 0}})
	if err == nil {
		t.Fatal("expected error on wrong embedding dimension")
	}

	// Failed inserts must not leave partial data behind.
	n, err := s.CountDishes(ctx)
	if err != nil {
		t.Fatalf("CountDishes: %v", err)
	}
	if n != 0 {
		t.Errorf("count after failed insert = %d, want 0", n)
	}
}

func TestVectorSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dishes := []Dish{
		{Name: "Greek Salad", IsVegetarian: true},
		{Name: "Grilled Chicken", IsVegetarian: false},
		{Name: "Caprese", IsVegetarian: true},
	}
	embeddings := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	}
	if err := s.InsertDishes(ctx, dishes, embeddings); err != nil {
		t.Fatalf("InsertDishes: %v", err)
	}

	results, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("VectorSearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Name != "Greek Salad" {
		t.Errorf("nearest = %q, want Greek Salad", results[0].Name)
	}
	if results[0].Distance != 0 {
		t.Errorf("exact match distance = %v, want 0", results[0].Distance)
	}
	if results[1].Name != "Caprese" {
		t.Errorf("second = %q, want Caprese", results[1].Name)
	}
	if results[1].Distance <= results[0].Distance {
		t.Errorf("results not ordered by distance: %v", results)
	}
	if !results[0].IsVegetarian {
		t.Error("Greek Salad label lost in round trip")
	}
}

func TestVectorSearchEmptyStore(t *testing.T) {
	s := newTestStore(t)

	results, err := s.VectorSearch(context.Background(), []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("VectorSearch on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty store", len(results))
	}
}
