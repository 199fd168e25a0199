// Package hints provides the secondary signals used to nudge near-threshold
// classifications: keyword presence in an item's text and face presence in its image.
package hints

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Hint reports whether a signal is present for an item. Failures are reported as absent.
type Hint interface {
	Present(ctx context.Context, itemID string) bool
}

// Func adapts a plain function to Hint.
type Func func(ctx context.Context, itemID string) bool

// Present calls f.
func (f Func) Present(ctx context.Context, itemID string) bool {
	return f(ctx, itemID)
}

// Option configures a hint or detector.
type Option func(*options)

type options struct {
	logger *zap.Logger
	client *http.Client
}

// WithLogger sets a logger for debug output (hint failures, breaker transitions).
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient sets the HTTP client used by HTTPDetector.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// SplitKeywords parses a comma-separated keyword list. Entries are trimmed and
// normalized; empty entries are dropped.
func SplitKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if k := Normalize(part); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Normalize applies NFKC, drops control characters, collapses whitespace, and case-folds.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// ContainsAny reports whether normalized text contains any of the normalized keywords.
func ContainsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
