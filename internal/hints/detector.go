package hints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/metrics"
)

// Detector is the external face detector.
type Detector interface {
	DetectFace(ctx context.Context, imagePath string) (bool, error)
}

// NopDetector never reports a face.
type NopDetector struct{}

// DetectFace implements Detector.
func (NopDetector) DetectFace(ctx context.Context, imagePath string) (bool, error) {
	return false, nil
}

// detectResponse is the detector's reply.
type detectResponse struct {
	Faces int `json:"faces"`
}

// HTTPDetector posts image bytes to a face detection service. Calls go through a
// circuit breaker so an unavailable service fails fast.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[bool]
	logger   *zap.Logger
}

// DetectorConfig configures an HTTPDetector.
type DetectorConfig struct {
	Endpoint         string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// NewHTTPDetector creates a detector for cfg.Endpoint.
func NewHTTPDetector(cfg DetectorConfig, opts ...Option) *HTTPDetector {
	o := applyOptions(opts)
	if o.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		o.client = &http.Client{Timeout: timeout}
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	const name = "face-detector"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	logger := o.logger
	cb := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &HTTPDetector{endpoint: cfg.Endpoint, client: o.client, cb: cb, logger: logger}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// DetectFace implements Detector. An open breaker returns gobreaker.ErrOpenState.
func (d *HTTPDetector) DetectFace(ctx context.Context, imagePath string) (bool, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return false, fmt.Errorf("failed to read image: %w", err)
	}
	return d.cb.Execute(func() (bool, error) {
		return d.post(ctx, data)
	})
}

func (d *HTTPDetector) post(ctx context.Context, data []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", http.DetectContentType(data))
	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("face detector request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("face detector returned status %d", resp.StatusCode)
	}
	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode face detector response: %w", err)
	}
	return out.Faces > 0, nil
}
