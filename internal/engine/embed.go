package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/embedding"
	"github.com/hyperjump/autocat/internal/hints"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/vector"
)

// ErrNoImage is returned when none of an item's image paths exists under the storage root.
var ErrNoImage = errors.New("no image available")

// EmbedItem encodes the image of an item (thumbnail, poster, then media) and stores the
// embedding under the engine's model key.
func (e *Engine) EmbedItem(ctx context.Context, itemID string) (*models.Embedding, error) {
	if e.encoder == nil {
		return nil, embedding.ErrEncoderUnavailable
	}
	it, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	path, err := e.resolveImage(it)
	if err != nil {
		return nil, err
	}
	v, err := e.encoder.EncodeImage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", itemID, err)
	}
	blob, dim := vector.Encode(v)
	rec := &models.Embedding{OwnerID: itemID, ModelKey: e.modelKey, Dim: dim, Blob: blob}
	if err := e.store.PutItemEmbedding(ctx, rec); err != nil {
		return nil, err
	}
	e.logger.Debug("item embedded", zap.String("item_id", itemID), zap.Int("dim", dim))
	return rec, nil
}

func (e *Engine) resolveImage(it *models.Item) (string, error) {
	path, err := hints.ResolveImage(e.storageRoot, it)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("item %s: %w", it.ID, ErrNoImage)
	}
	return path, nil
}

// EnsureCategoryEmbeddings encodes the names of active categories that have no stored
// name embedding (all of them when force is set). It returns the number encoded.
func (e *Engine) EnsureCategoryEmbeddings(ctx context.Context, force bool) (int, error) {
	if e.encoder == nil {
		return 0, embedding.ErrEncoderUnavailable
	}
	cats, err := e.store.ListActiveCategories(ctx)
	if err != nil {
		return 0, err
	}
	existing, err := e.store.ListCategoryEmbeddings(ctx, e.modelKey)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, emb := range existing {
		have[emb.OwnerID] = true
	}

	var todo []*models.Category
	for _, c := range cats {
		if c.IsUncategorized() || (have[c.ID] && !force) {
			continue
		}
		todo = append(todo, c)
	}
	if len(todo) == 0 {
		return 0, nil
	}

	names := make([]string, len(todo))
	for i, c := range todo {
		names[i] = c.Name
	}
	vecs, err := e.encoder.EncodeTexts(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("failed to encode category names: %w", err)
	}
	if len(vecs) != len(todo) {
		return 0, fmt.Errorf("failed to encode category names: got %d vectors for %d names", len(vecs), len(todo))
	}
	for i, c := range todo {
		blob, dim := vector.Encode(vecs[i])
		if err := e.store.PutCategoryEmbedding(ctx, &models.Embedding{
			OwnerID: c.ID, ModelKey: e.modelKey, Dim: dim, Blob: blob,
		}); err != nil {
			return i, err
		}
	}
	e.logger.Info("category embeddings stored", zap.Int("count", len(todo)))
	return len(todo), nil
}
