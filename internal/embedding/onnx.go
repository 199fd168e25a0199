//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/autocat/internal/metrics"
	"github.com/hyperjump/autocat/pkg/utils"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initializeEnvironment() error {
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// imageSession runs a CLIP vision tower: pixel_values [1,3,S,S] -> image_embeds [1,D].
type imageSession struct {
	session *ort.AdvancedSession
	pixels  *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// textSession runs a CLIP text tower: input_ids, attention_mask [1,T] -> text_embeds [1,D].
type textSession struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// ONNXEncoder uses ONNX Runtime to produce CLIP embeddings. It requires CGO and the
// onnxruntime shared library. Either model path may be empty; that modality then returns
// ErrEncoderUnavailable.
type ONNXEncoder struct {
	cfg       Config
	image     *imageSession
	text      *textSession
	cache     *EmbeddingCache
	tokenizer Tokenizer
	mu        sync.Mutex
}

// NewONNXEncoder creates an ONNX encoder. InitializeEnvironment is called if not already done.
func NewONNXEncoder(cfg Config) (*ONNXEncoder, error) {
	if cfg.ImageModelPath == "" && cfg.TextModelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrEncoderUnavailable)
	}
	if err := initializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	e := &ONNXEncoder{
		cfg:       cfg,
		cache:     NewEmbeddingCache(cfg.CacheSize),
		tokenizer: &SimpleTokenizer{},
	}
	if cfg.ImageModelPath != "" {
		s, err := newImageSession(cfg.ImageModelPath, cfg.ImageSize, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		e.image = s
	}
	if cfg.TextModelPath != "" {
		s, err := newTextSession(cfg.TextModelPath, cfg.MaxTokens, cfg.Dimensions)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.text = s
	}
	return e, nil
}

func newImageSession(modelPath string, size, dimensions int) (*imageSession, error) {
	pixels, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), make([]float32, 3*size*size))
	if err != nil {
		return nil, fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		pixels.Destroy()
		return nil, fmt.Errorf("failed to create image output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{pixels},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		pixels.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create image ONNX session: %w", err)
	}
	return &imageSession{session: session, pixels: pixels, output: output}, nil
}

func newTextSession(modelPath string, maxTokens, dimensions int) (*textSession, error) {
	inputIDs, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), make([]int64, maxTokens))
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMask, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), make([]int64, maxTokens))
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		return nil, fmt.Errorf("failed to create text output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{inputIDs, attentionMask},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create text ONNX session: %w", err)
	}
	return &textSession{session: session, inputIDs: inputIDs, attentionMask: attentionMask, output: output}, nil
}

// EncodeImage returns the normalized embedding of the image at path.
func (e *ONNXEncoder) EncodeImage(ctx context.Context, path string) ([]float32, error) {
	if e.image == nil {
		return nil, fmt.Errorf("%w: no image model", ErrEncoderUnavailable)
	}
	img, err := LoadImage(path)
	if err != nil {
		metrics.RecordEncoder("image", err)
		return nil, err
	}
	pixels := Preprocess(img, e.cfg.ImageSize)

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.image.pixels.GetData(), pixels)
	if err := e.image.session.Run(); err != nil {
		metrics.RecordEncoder("image", err)
		return nil, fmt.Errorf("image inference failed: %w", err)
	}
	emb := make([]float32, e.cfg.Dimensions)
	copy(emb, e.image.output.GetData())
	utils.NormalizeL2(emb)
	metrics.RecordEncoder("image", nil)
	return emb, nil
}

// EncodeTexts returns the normalized embedding of each text, using the cache when available.
func (e *ONNXEncoder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.text == nil {
		return nil, fmt.Errorf("%w: no text model", ErrEncoderUnavailable)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.encodeText(text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (e *ONNXEncoder) encodeText(text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask := e.tokenizer.Tokenize(text, e.cfg.MaxTokens)
	copy(e.text.inputIDs.GetData(), inputIDs)
	copy(e.text.attentionMask.GetData(), attentionMask)
	if err := e.text.session.Run(); err != nil {
		metrics.RecordEncoder("text", err)
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	emb := make([]float32, e.cfg.Dimensions)
	copy(emb, e.text.output.GetData())
	utils.NormalizeL2(emb)
	metrics.RecordEncoder("text", nil)
	e.cache.Set(text, emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEncoder) Dimensions() int {
	return e.cfg.Dimensions
}

// ModelKey returns the configured model key.
func (e *ONNXEncoder) ModelKey() string {
	return e.cfg.ModelKey
}

// Close destroys the sessions and tensors.
func (e *ONNXEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if s := e.image; s != nil {
		err = s.session.Destroy()
		_ = s.pixels.Destroy()
		_ = s.output.Destroy()
		e.image = nil
	}
	if s := e.text; s != nil {
		if terr := s.session.Destroy(); err == nil {
			err = terr
		}
		_ = s.inputIDs.Destroy()
		_ = s.attentionMask.Destroy()
		_ = s.output.Destroy()
		e.text = nil
	}
	return err
}
