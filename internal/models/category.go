// Package models defines core data structures for categories, items, embeddings, and classification results.
package models

import "time"

// UncategorizedName is the name of the sentinel category assigned when no confident match exists.
const UncategorizedName = "未分类"

// Category is a gallery category. Only active categories take part in classification.
type Category struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsUncategorized reports whether c is the Uncategorized sentinel.
func (c *Category) IsUncategorized() bool {
	return c != nil && c.Name == UncategorizedName
}

// Embedding is a stored vector blob owned by an item or a category for one model key.
type Embedding struct {
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	ModelKey  string    `json:"model_key" db:"model_key"`
	Dim       int       `json:"dim" db:"dim"`
	Blob      []byte    `json:"-" db:"vector_blob"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
