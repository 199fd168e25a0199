// Package embedding provides image and text encoders that map media and category names
// into one shared embedding space.
package embedding

import (
	"context"
	"errors"
)

// ErrEncoderUnavailable is returned when no model is loaded for the requested modality.
var ErrEncoderUnavailable = errors.New("encoder unavailable")

// Encoder produces L2-normalized embeddings for images and texts.
type Encoder interface {
	EncodeImage(ctx context.Context, path string) ([]float32, error)
	EncodeTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelKey identifies the embedding space; stored vectors are keyed by it.
	ModelKey() string
	Close() error
}

// Config configures an ONNX encoder.
type Config struct {
	ImageModelPath string
	TextModelPath  string
	ModelKey       string
	Dimensions     int
	ImageSize      int
	MaxTokens      int
	CacheSize      int
}
