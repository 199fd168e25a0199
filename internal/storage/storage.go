// Package storage defines the corpus persistence interface for categories, items, and embeddings.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/autocat/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines corpus access used by the classification core and its callers.
type Storage interface {
	// Category operations
	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListActiveCategories(ctx context.Context) ([]*models.Category, error)
	EnsureUncategorized(ctx context.Context) (*models.Category, error)

	// Item operations
	CreateItem(ctx context.Context, it *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, limit int, includeDeleted bool) ([]*models.Item, error)
	ListCategoryItemIDs(ctx context.Context, categoryID string, limit int, includeDeleted bool) ([]string, error)
	GetItemText(ctx context.Context, id string) (*models.ItemText, error)
	AddItemVersion(ctx context.Context, itemID, prompt string) (string, error)
	SetItemTags(ctx context.Context, itemID string, tags []string) error
	SetItemCategory(ctx context.Context, itemID, categoryID string, lock bool) error
	SetItemLock(ctx context.Context, itemID string, locked bool) error
	ApplyClassifications(ctx context.Context, updates []models.ClassificationUpdate) error

	// Series operations
	CreateSeries(ctx context.Context, s *models.Series, basePrompt string) error

	// Embedding operations
	GetItemEmbedding(ctx context.Context, itemID, modelKey string) (*models.Embedding, error)
	PutItemEmbedding(ctx context.Context, e *models.Embedding) error
	ListCategoryEmbeddings(ctx context.Context, modelKey string) ([]*models.Embedding, error)
	PutCategoryEmbedding(ctx context.Context, e *models.Embedding) error

	// Stats
	CountItems(ctx context.Context) (int64, error)
	CountCategories(ctx context.Context) (int64, error)
	CountItemEmbeddings(ctx context.Context, modelKey string) (int64, error)

	Close() error
}
