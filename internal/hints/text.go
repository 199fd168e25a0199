package hints

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/metrics"
	"github.com/hyperjump/autocat/internal/models"
)

// TextSource loads the textual context of an item.
type TextSource interface {
	GetItemText(ctx context.Context, itemID string) (*models.ItemText, error)
}

// TextHint reports whether an item's title, tags, prompt, or series context mention any
// person-related keyword.
type TextHint struct {
	source   TextSource
	keywords []string
	logger   *zap.Logger
}

// NewTextHint creates a text hint over the given keywords. Keywords are normalized the
// same way as the item text.
func NewTextHint(source TextSource, keywords []string, opts ...Option) *TextHint {
	o := applyOptions(opts)
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = Normalize(k); k != "" {
			normalized = append(normalized, k)
		}
	}
	return &TextHint{source: source, keywords: normalized, logger: o.logger}
}

// Present implements Hint.
func (h *TextHint) Present(ctx context.Context, itemID string) bool {
	if len(h.keywords) == 0 {
		return false
	}
	text, err := h.source.GetItemText(ctx, itemID)
	if err != nil {
		h.logger.Debug("text hint lookup failed", zap.String("item_id", itemID), zap.Error(err))
		metrics.RecordHint("text", false, err)
		return false
	}
	present := ContainsAny(Normalize(strings.Join(text.Parts(), " ")), h.keywords)
	metrics.RecordHint("text", present, nil)
	return present
}
