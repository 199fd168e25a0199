package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/storage"
)

// Status summarizes the corpus as seen by the engine.
type Status struct {
	ModelKey        string `json:"model_key"`
	Items           int64  `json:"items"`
	Categories      int64  `json:"categories"`
	ItemEmbeddings  int64  `json:"item_embeddings"`
	EncoderReady    bool   `json:"encoder_ready"`
	DiskUsageBytes  int64  `json:"disk_usage_bytes"`
	UncategorizedID string `json:"uncategorized_id,omitempty"`
}

// Status returns corpus counts. dataPaths are summed for disk usage; missing paths count 0.
func (e *Engine) Status(ctx context.Context, dataPaths ...string) (*Status, error) {
	st := &Status{ModelKey: e.modelKey, EncoderReady: e.encoder != nil}
	var err error
	if st.Items, err = e.store.CountItems(ctx); err != nil {
		return nil, err
	}
	if st.Categories, err = e.store.CountCategories(ctx); err != nil {
		return nil, err
	}
	if st.ItemEmbeddings, err = e.store.CountItemEmbeddings(ctx, e.modelKey); err != nil {
		return nil, err
	}
	if unc, err := e.store.GetCategoryByName(ctx, models.UncategorizedName); err == nil {
		st.UncategorizedID = unc.ID
	}
	if len(dataPaths) > 0 {
		n, err := storage.DiskUsageBytes(dataPaths...)
		if err != nil {
			e.logger.Warn("status: disk usage failed", zap.Error(err))
		} else {
			st.DiskUsageBytes = n
		}
	}
	return st, nil
}
