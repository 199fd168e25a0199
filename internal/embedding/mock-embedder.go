package embedding

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/hyperjump/autocat/pkg/utils"
)

// MockEncoder is a deterministic encoder for tests. Image embeddings derive from the file
// bytes and text embeddings from the text, so equal inputs always embed equally.
type MockEncoder struct {
	dimensions int
	modelKey   string
}

// NewMockEncoder returns an encoder that produces deterministic embeddings of the given dimensions.
func NewMockEncoder(dimensions int, modelKey string) *MockEncoder {
	if dimensions <= 0 {
		dimensions = 512
	}
	if modelKey == "" {
		modelKey = "mock"
	}
	return &MockEncoder{dimensions: dimensions, modelKey: modelKey}
}

func (e *MockEncoder) vector(seed string) []float32 {
	h := HashString(seed)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// EncodeImage returns a deterministic embedding based on the file content.
func (e *MockEncoder) EncodeImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return e.vector("image:" + string(data)), nil
}

// EncodeTexts returns a deterministic embedding per text.
func (e *MockEncoder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector("text:" + text)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEncoder) Dimensions() int {
	return e.dimensions
}

// ModelKey returns the configured model key.
func (e *MockEncoder) ModelKey() string {
	return e.modelKey
}

// Close is a no-op for MockEncoder.
func (e *MockEncoder) Close() error {
	return nil
}
