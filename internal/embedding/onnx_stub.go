//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"
)

// ONNXEncoder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEncoder struct{}

// NewONNXEncoder returns an error when built without CGO (ONNX not available).
func NewONNXEncoder(_ Config) (*ONNXEncoder, error) {
	return nil, fmt.Errorf("%w: ONNX encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime", ErrEncoderUnavailable)
}

// EncodeImage always fails without CGO.
func (e *ONNXEncoder) EncodeImage(context.Context, string) ([]float32, error) {
	return nil, ErrEncoderUnavailable
}

// EncodeTexts always fails without CGO.
func (e *ONNXEncoder) EncodeTexts(context.Context, []string) ([][]float32, error) {
	return nil, ErrEncoderUnavailable
}

// Dimensions returns 0 without CGO.
func (e *ONNXEncoder) Dimensions() int { return 0 }

// ModelKey returns "" without CGO.
func (e *ONNXEncoder) ModelKey() string { return "" }

// Close is a no-op without CGO.
func (e *ONNXEncoder) Close() error { return nil }
