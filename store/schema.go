package store

import "fmt"

// schemaSQL returns the DDL for the dish knowledge base. embeddingDim
// controls the vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Labeled dishes used as classification evidence
CREATE TABLE IF NOT EXISTS dishes (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    is_vegetarian INTEGER NOT NULL,
    description TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_dishes_name ON dishes(name);

-- Vector embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_dishes USING vec0(
    dish_id INTEGER PRIMARY KEY,
    embedding float[%d]
);
`, embeddingDim)
}
