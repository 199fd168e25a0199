package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/autocat/internal/assign"
	"github.com/hyperjump/autocat/internal/metrics"
	"github.com/hyperjump/autocat/internal/models"
)

// batchEntry is the computed outcome for one scanned item.
type batchEntry struct {
	item     *models.Item
	decision assign.Decision
	missing  bool
}

// Reclassify runs the batch policy over the newest req.Limit items. One prototype snapshot
// serves the whole batch. Unless req.DryRun, all outcomes are written in one transaction.
func (e *Engine) Reclassify(ctx context.Context, req models.ReclassifyRequest) (*models.ReclassifyReport, error) {
	start := time.Now()
	s := e.Settings()
	threshold := s.Classify.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if req.Limit < 1 {
		req.Limit = s.Reclassify.DefaultLimit
	}

	set, err := e.buildPrototypes(ctx, s, req.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	unc, err := e.store.EnsureUncategorized(ctx)
	if err != nil {
		return nil, err
	}
	items, err := e.store.ListItems(ctx, req.Limit, req.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	params := s.Params()
	params.Threshold = threshold
	clf := e.classifier(s)
	mode := assign.Mode{Batch: true, Force: req.Force, OnlyUncategorized: req.OnlyUncategorized}

	entries := make([]batchEntry, len(items))
	g, gctx := errgroup.WithContext(ctx)
	workers := s.Reclassify.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, it := range items {
		g.Go(func() error {
			emb, err := e.loadEmbedding(gctx, it.ID)
			if err != nil {
				return fmt.Errorf("failed to load embedding for %s: %w", it.ID, err)
			}
			res := clf.Classify(gctx, it.ID, emb, set, unc, params)
			d, err := assign.Decide(assign.StateOf(it), res, threshold, mode)
			if err != nil {
				return err
			}
			entries[i] = batchEntry{item: it, decision: d, missing: emb == nil}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &models.ReclassifyReport{
		Status:          "ok",
		DryRun:          req.DryRun,
		Threshold:       threshold,
		Scanned:         len(entries),
		PrototypeCount:  len(set),
		Samples:         []models.ReclassifySample{},
		UncategorizedID: unc.ID,
	}
	maxSamples := s.Reclassify.MaxSamples
	updates := make([]models.ClassificationUpdate, 0, len(entries))
	for _, en := range entries {
		d := en.decision
		if en.missing {
			report.MissingEmbedding++
		}
		if en.item.IsCategoryLocked && d.Target != "" && d.Target != en.item.CategoryID {
			report.LockedKept++
		}
		if d.Changed() {
			report.WouldUpdate++
			if len(report.Samples) < maxSamples {
				report.Samples = append(report.Samples, models.ReclassifySample{
					ItemID: en.item.ID,
					Title:  en.item.Title,
					Prev: models.ReclassifySnapshot{
						CategoryID:     en.item.CategoryID,
						AutoCategoryID: en.item.AutoCategoryID,
						AutoConfidence: en.item.AutoConfidence,
					},
					Next: models.ReclassifySnapshot{
						CategoryID:     d.CategoryID,
						AutoCategoryID: d.AutoCategoryID,
						AutoConfidence: d.AutoConfidence,
					},
				})
			}
		}
		updates = append(updates, d.Update(en.item.ID))
	}

	if !req.DryRun {
		if err := e.store.ApplyClassifications(ctx, updates); err != nil {
			metrics.RecordReclassify(req.DryRun, "error", report.Scanned, report.WouldUpdate, 0, report.LockedKept, report.MissingEmbedding, time.Since(start))
			return nil, fmt.Errorf("failed to apply reclassification: %w", err)
		}
		report.Applied = len(updates)
	}

	report.QueryTime = time.Since(start).Milliseconds()
	metrics.RecordReclassify(req.DryRun, report.Status, report.Scanned, report.WouldUpdate, report.Applied,
		report.LockedKept, report.MissingEmbedding, time.Since(start))
	e.logger.Info("reclassify finished",
		zap.Bool("dry_run", req.DryRun), zap.Int("scanned", report.Scanned),
		zap.Int("would_update", report.WouldUpdate), zap.Int("applied", report.Applied),
		zap.Int("prototypes", report.PrototypeCount))
	return report, nil
}
