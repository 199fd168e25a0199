// Package prototype builds per-category centroid embeddings from labeled items.
package prototype

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/storage"
	"github.com/hyperjump/autocat/internal/vector"
)

// ErrNoCategoriesAvailable is returned when the corpus has no active categories at all.
var ErrNoCategoriesAvailable = errors.New("no categories available")

// Prototype is the centroid of the sampled item embeddings of one category.
type Prototype struct {
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Centroid     []float32 `json:"-"`
	SampleCount  int       `json:"sample_count"`
}

// Set is a snapshot of prototypes. An empty set means no category had enough samples.
type Set []Prototype

// Source is the corpus access the builder needs.
type Source interface {
	ListActiveCategories(ctx context.Context) ([]*models.Category, error)
	ListCategoryItemIDs(ctx context.Context, categoryID string, limit int, includeDeleted bool) ([]string, error)
	GetItemEmbedding(ctx context.Context, itemID, modelKey string) (*models.Embedding, error)
}

// Builder computes prototype sets.
type Builder struct {
	source     Source
	modelKey   string
	sampleCap  int
	minSamples int
	logger     *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for skipped samples and categories.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder sampling up to sampleCap items per category and keeping
// categories with at least minSamples usable embeddings.
func NewBuilder(source Source, modelKey string, sampleCap, minSamples int, opts ...BuilderOption) *Builder {
	if sampleCap < 1 {
		sampleCap = 1
	}
	if minSamples < 1 {
		minSamples = 1
	}
	b := &Builder{
		source:     source,
		modelKey:   modelKey,
		sampleCap:  sampleCap,
		minSamples: minSamples,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns one prototype per active non-Uncategorized category that has enough
// sampled embeddings. Prototypes follow the category listing order.
func (b *Builder) Build(ctx context.Context, includeDeleted bool) (Set, error) {
	cats, err := b.source.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(cats) == 0 {
		return nil, ErrNoCategoriesAvailable
	}

	set := make(Set, 0, len(cats))
	for _, c := range cats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.IsUncategorized() {
			continue
		}
		p, ok := b.buildOne(ctx, c, includeDeleted)
		if ok {
			set = append(set, p)
		}
	}
	b.logger.Debug("prototypes built", zap.Int("categories", len(cats)), zap.Int("prototypes", len(set)))
	return set, nil
}

func (b *Builder) buildOne(ctx context.Context, c *models.Category, includeDeleted bool) (Prototype, bool) {
	ids, err := b.source.ListCategoryItemIDs(ctx, c.ID, b.sampleCap, includeDeleted)
	if err != nil {
		b.logger.Warn("prototype sample listing failed", zap.String("category_id", c.ID), zap.Error(err))
		return Prototype{}, false
	}
	if len(ids) < b.minSamples {
		return Prototype{}, false
	}

	vecs := make([][]float32, 0, len(ids))
	for _, id := range ids {
		e, err := b.source.GetItemEmbedding(ctx, id, b.modelKey)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				b.logger.Debug("prototype sample load failed", zap.String("item_id", id), zap.Error(err))
			}
			continue
		}
		v, err := vector.Decode(e.Blob, e.Dim)
		if err != nil {
			b.logger.Debug("prototype sample skipped", zap.String("item_id", id), zap.Error(err))
			continue
		}
		vecs = append(vecs, v)
	}

	centroid, n := vector.Mean(vecs)
	if n < b.minSamples {
		return Prototype{}, false
	}
	return Prototype{
		CategoryID:   c.ID,
		CategoryName: c.Name,
		Centroid:     centroid,
		SampleCount:  n,
	}, true
}

// FromCategoryEmbeddings builds a set from stored category-name embeddings, one prototype
// per active non-Uncategorized category that has a decodable embedding.
func FromCategoryEmbeddings(cats []*models.Category, embeddings []*models.Embedding) Set {
	byOwner := make(map[string]*models.Embedding, len(embeddings))
	for _, e := range embeddings {
		byOwner[e.OwnerID] = e
	}
	set := make(Set, 0, len(cats))
	for _, c := range cats {
		if c.IsUncategorized() || !c.IsActive {
			continue
		}
		e, ok := byOwner[c.ID]
		if !ok {
			continue
		}
		v, err := vector.Decode(e.Blob, e.Dim)
		if err != nil || len(v) == 0 {
			continue
		}
		set = append(set, Prototype{CategoryID: c.ID, CategoryName: c.Name, Centroid: v})
	}
	return set
}
