// Package store provides SQLite persistence for the labeled-dish
// knowledge base, including sqlite-vec nearest-neighbour search.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Dish is a labeled knowledge-base entry.
type Dish struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	IsVegetarian bool   `json:"is_vegetarian"`
	Description  string `json:"description,omitempty"`
}

// Neighbor is a dish returned by nearest-neighbour search, with its raw
// L2 distance to the query vector.
type Neighbor struct {
	Dish
	Distance float64 `json:"distance"`
}

// Stats summarises the knowledge base contents.
type Stats struct {
	Dishes     int64 `json:"dishes"`
	Embeddings int64 `json:"embeddings"`
}

// Store wraps the SQLite database holding the dish knowledge base.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// CountDishes returns the number of dishes in the knowledge base.
func (s *Store) CountDishes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dishes").Scan(&n)
	return n, err
}

// InsertDishes stores dishes and their embeddings in one transaction.
// Either everything lands or nothing does, so a failed seed leaves the
// collection untouched and can be retried.
func (s *Store) InsertDishes(ctx context.Context, dishes []Dish, embeddings [][]float32) error {
	if len(dishes) != len(embeddings) {
		return fmt.Errorf("dish/embedding count mismatch: %d vs %d", len(dishes), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	dishStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO dishes (name, is_vegetarian, description) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer dishStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO vec_dishes (dish_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i, d := range dishes {
		if len(embeddings[i]) != s.embeddingDim {
			return fmt.Errorf("dish %q: embedding dimension %d, want %d",
				d.Name, len(embeddings[i]), s.embeddingDim)
		}

		res, err := dishStmt.ExecContext(ctx, d.Name, boolToInt(d.IsVegetarian), d.Description)
		if err != nil {
			return fmt.Errorf("inserting dish %q: %w", d.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := vecStmt.ExecContext(ctx, id, serializeFloat32(embeddings[i])); err != nil {
			return fmt.Errorf("inserting embedding for %q: %w", d.Name, err)
		}
	}

	return tx.Commit()
}

// VectorSearch performs a KNN search returning the top-k nearest dishes
// by L2 distance, closest first.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]Neighbor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.dish_id, v.distance, d.name, d.is_vegetarian, d.description
		FROM vec_dishes v
		JOIN dishes d ON d.id = v.dish_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Neighbor
	for rows.Next() {
		var n Neighbor
		var isVeg int
		var desc sql.NullString
		if err := rows.Scan(&n.ID, &n.Distance, &n.Name, &isVeg, &desc); err != nil {
			return nil, err
		}
		n.IsVegetarian = isVeg != 0
		n.Description = desc.String
		results = append(results, n)
	}
	return results, rows.Err()
}

// Stats returns row counts for diagnostics and the health endpoint.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dishes").Scan(&st.Dishes); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_dishes").Scan(&st.Embeddings); err != nil {
		return st, err
	}
	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// serializeFloat32 converts a float32 slice to little-endian bytes for
// sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
