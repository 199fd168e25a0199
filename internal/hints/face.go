package hints

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/metrics"
	"github.com/hyperjump/autocat/internal/models"
)

// errPathEscapesRoot is returned when a stored relative path resolves outside the storage root.
var errPathEscapesRoot = errors.New("path escapes storage root")

// ItemSource loads item rows.
type ItemSource interface {
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
}

// FaceHint reports whether the image of an item contains a face.
type FaceHint struct {
	items    ItemSource
	root     string
	detector Detector
	logger   *zap.Logger
}

// NewFaceHint creates a face hint resolving item image paths under root.
func NewFaceHint(items ItemSource, root string, detector Detector, opts ...Option) *FaceHint {
	o := applyOptions(opts)
	if detector == nil {
		detector = NopDetector{}
	}
	return &FaceHint{items: items, root: root, detector: detector, logger: o.logger}
}

// Present implements Hint.
func (h *FaceHint) Present(ctx context.Context, itemID string) bool {
	present, err := h.detect(ctx, itemID)
	if err != nil {
		h.logger.Debug("face hint failed", zap.String("item_id", itemID), zap.Error(err))
	}
	metrics.RecordHint("face", present, err)
	return present
}

func (h *FaceHint) detect(ctx context.Context, itemID string) (bool, error) {
	it, err := h.items.GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	path, err := ResolveImage(h.root, it)
	if err != nil || path == "" {
		return false, err
	}
	return h.detector.DetectFace(ctx, path)
}

// ResolveImage returns the absolute path of it.ImagePath() under root. It returns "" when
// the item has no image path or that file is missing; later paths are not tried.
func ResolveImage(root string, it *models.Item) (string, error) {
	rel := it.ImagePath()
	if root == "" || rel == "" {
		return "", nil
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	full, err := ResolveUnder(root, rel)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		return "", nil
	}
	return full, nil
}

// ResolveUnder joins rel onto root and rejects results outside root.
func ResolveUnder(root, rel string) (string, error) {
	full := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
	r, err := filepath.Rel(root, full)
	if err != nil {
		return "", err
	}
	if r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errPathEscapesRoot, rel)
	}
	return full, nil
}
