// Package engine orchestrates classification: it builds prototype snapshots, wires the
// hints into the classifier, applies the assignment policy, and persists the outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/assign"
	"github.com/hyperjump/autocat/internal/classify"
	"github.com/hyperjump/autocat/internal/config"
	"github.com/hyperjump/autocat/internal/embedding"
	"github.com/hyperjump/autocat/internal/hints"
	"github.com/hyperjump/autocat/internal/metrics"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/prototype"
	"github.com/hyperjump/autocat/internal/storage"
	"github.com/hyperjump/autocat/internal/vector"
)

// Settings are the tuning parameters the engine reads at the start of every call.
type Settings struct {
	Classify   config.ClassifyConfig   `json:"auto_category"`
	Reclassify config.ReclassifyConfig `json:"-"`
}

// SettingsFromConfig extracts the engine settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{Classify: cfg.Classify, Reclassify: cfg.Reclassify}
}

// Params converts the classify settings into classifier parameters.
func (s Settings) Params() classify.Params {
	return classify.Params{
		TopK:          s.Classify.TopK,
		Threshold:     s.Classify.Threshold,
		TextBoost:     s.Classify.TextBoost,
		TextNearBand:  s.Classify.TextNearBand,
		FaceBoost:     s.Classify.FaceBoost,
		FaceNearBand:  s.Classify.FaceNearBand,
		BoostKeywords: hints.SplitKeywords(s.Classify.FaceKeywords),
	}
}

// Engine runs classification over the corpus.
type Engine struct {
	store       storage.Storage
	modelKey    string
	encoder     embedding.Encoder
	detector    hints.Detector
	storageRoot string
	logger      *zap.Logger

	mu       sync.RWMutex
	settings Settings
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for classification events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEncoder sets the encoder used to embed items and category names.
func WithEncoder(enc embedding.Encoder) Option {
	return func(e *Engine) { e.encoder = enc }
}

// WithDetector sets the face detector used by the face hint.
func WithDetector(d hints.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// WithStorageRoot sets the directory item image paths are relative to.
func WithStorageRoot(root string) Option {
	return func(e *Engine) { e.storageRoot = root }
}

// NewEngine creates an engine reading embeddings stored under modelKey.
func NewEngine(store storage.Storage, modelKey string, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		modelKey: modelKey,
		detector: hints.NopDetector{},
		logger:   zap.NewNop(),
		settings: settings,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// UpdateSettings swaps the settings used by subsequent calls.
func (e *Engine) UpdateSettings(s Settings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	e.logger.Info("settings updated",
		zap.Float64("threshold", s.Classify.Threshold), zap.Int("top_k", s.Classify.TopK))
}

// ModelKey returns the embedding model key the engine reads.
func (e *Engine) ModelKey() string {
	return e.modelKey
}

func (e *Engine) classifier(s Settings) *classify.Classifier {
	text := hints.NewTextHint(e.store, hints.SplitKeywords(s.Classify.PersonTextKeywords), hints.WithLogger(e.logger))
	face := hints.NewFaceHint(e.store, e.storageRoot, e.detector, hints.WithLogger(e.logger))
	return classify.NewClassifier(text, face, classify.WithLogger(e.logger))
}

// buildPrototypes builds a snapshot, falling back to category-name embeddings when enabled
// and no category has enough samples.
func (e *Engine) buildPrototypes(ctx context.Context, s Settings, includeDeleted bool) (prototype.Set, error) {
	start := time.Now()
	b := prototype.NewBuilder(e.store, e.modelKey,
		s.Classify.SamplePerCategory, s.Classify.MinSamplesPerCategory, prototype.WithLogger(e.logger))
	set, err := b.Build(ctx, includeDeleted)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 && s.Classify.TextPrototypeFallback {
		cats, err := e.store.ListActiveCategories(ctx)
		if err != nil {
			return nil, err
		}
		embs, err := e.store.ListCategoryEmbeddings(ctx, e.modelKey)
		if err != nil {
			return nil, err
		}
		set = prototype.FromCategoryEmbeddings(cats, embs)
		e.logger.Debug("using text prototypes", zap.Int("prototypes", len(set)))
	}
	metrics.RecordPrototypeBuild(len(set), time.Since(start))
	return set, nil
}

// Prototypes returns the prototype snapshot for the current settings.
func (e *Engine) Prototypes(ctx context.Context) (prototype.Set, error) {
	s := e.Settings()
	return e.buildPrototypes(ctx, s, s.Classify.IncludeDeletedInPrototypes)
}

// loadEmbedding returns the stored embedding of an item, or nil when it is missing or
// undecodable.
func (e *Engine) loadEmbedding(ctx context.Context, itemID string) ([]float32, error) {
	rec, err := e.store.GetItemEmbedding(ctx, itemID, e.modelKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := vector.Decode(rec.Blob, rec.Dim)
	if err != nil {
		e.logger.Warn("stored embedding unusable", zap.String("item_id", itemID), zap.Error(err))
		return nil, nil
	}
	return v, nil
}

// ClassifyOptions tune a single-item classification.
type ClassifyOptions struct {
	DryRun    bool
	Threshold *float64
}

// ClassifyItem classifies one item and, unless DryRun, persists the outcome. An unlocked
// item moves to the best category when its score reaches the threshold, otherwise to
// Uncategorized. A locked item only has its auto fields refreshed.
func (e *Engine) ClassifyItem(ctx context.Context, itemID string, opts ClassifyOptions) (*models.ClassificationOutcome, error) {
	start := time.Now()
	s := e.Settings()
	threshold := s.Classify.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	it, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	emb, err := e.loadEmbedding(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding: %w", err)
	}
	var set prototype.Set
	if emb != nil {
		if set, err = e.buildPrototypes(ctx, s, s.Classify.IncludeDeletedInPrototypes); err != nil {
			return nil, err
		}
	}
	unc, err := e.store.EnsureUncategorized(ctx)
	if err != nil {
		return nil, err
	}

	params := s.Params()
	params.Threshold = threshold
	res := e.classifier(s).Classify(ctx, itemID, emb, set, unc, params)
	d, err := assign.Decide(assign.StateOf(it), res, threshold, assign.Mode{})
	if err != nil {
		return nil, fmt.Errorf("failed to decide assignment: %w", err)
	}

	if !opts.DryRun {
		if err := e.store.ApplyClassifications(ctx, []models.ClassificationUpdate{d.Update(itemID)}); err != nil {
			return nil, fmt.Errorf("failed to persist classification: %w", err)
		}
	}

	out := &models.ClassificationOutcome{
		ItemID:           itemID,
		PrevCategoryID:   it.CategoryID,
		CategoryID:       d.CategoryID,
		AutoCategoryID:   d.AutoCategoryID,
		AutoConfidence:   d.AutoConfidence,
		Candidates:       res.TopK,
		Boosts:           res.Boosts,
		Locked:           it.IsCategoryLocked,
		Changed:          d.CategoryChanged,
		UncategorizedID:  unc.ID,
		PrototypeCount:   len(set),
		DryRun:           opts.DryRun,
		MissingEmbedding: emb == nil,
	}
	for _, b := range res.Boosts {
		metrics.BoostsApplied.WithLabelValues(b).Inc()
	}
	metrics.RecordClassification(outcomeLabel(out, res), time.Since(start))
	e.logger.Debug("item classified",
		zap.String("item_id", itemID), zap.String("category_id", out.CategoryID),
		zap.Bool("changed", out.Changed), zap.Strings("boosts", res.Boosts))
	return out, nil
}

func outcomeLabel(out *models.ClassificationOutcome, res classify.Result) string {
	switch {
	case out.MissingEmbedding:
		return "no_embedding"
	case res.Best == nil:
		return "no_prototypes"
	case out.Locked:
		return "locked"
	case out.CategoryID == out.UncategorizedID:
		return "uncategorized"
	default:
		return "assigned"
	}
}

// SetCategory records a manual category choice and locks the item.
func (e *Engine) SetCategory(ctx context.Context, itemID, categoryID string) error {
	if err := e.store.SetItemCategory(ctx, itemID, categoryID, true); err != nil {
		return err
	}
	e.logger.Debug("category set manually", zap.String("item_id", itemID), zap.String("category_id", categoryID))
	return nil
}

// SetLock sets or clears the category lock of an item.
func (e *Engine) SetLock(ctx context.Context, itemID string, locked bool) error {
	return e.store.SetItemLock(ctx, itemID, locked)
}
