// Package classify ranks category prototypes against an item embedding and applies the
// near-threshold text and face boosts.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/hints"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/prototype"
	"github.com/hyperjump/autocat/internal/vector"
)

// Boost stage names recorded in Result.Boosts.
const (
	BoostText = "text"
	BoostFace = "face"
)

// scoreTolerance absorbs float64 rounding, so 0.29 boosted by 0.03 reaches 0.32.
const scoreTolerance = 1e-9

// Reaches reports whether score is at or above threshold.
func Reaches(score, threshold float64) bool {
	return score >= threshold-scoreTolerance
}

// Params holds the tuning parameters of one classification.
type Params struct {
	TopK         int     `json:"top_k"`
	Threshold    float64 `json:"threshold"`
	TextBoost    float64 `json:"text_boost"`
	TextNearBand float64 `json:"text_near_band"`
	FaceBoost    float64 `json:"face_boost"`
	FaceNearBand float64 `json:"face_near_band"`
	// BoostKeywords select the categories (by name) that receive boosts.
	BoostKeywords []string `json:"boost_keywords"`
}

// Result is the outcome of a classification. Best is nil when the item has no embedding
// or no prototype is usable; callers then assign Fallback.
type Result struct {
	Fallback *models.Category
	Best     *models.Candidate
	TopK     []models.Candidate
	Boosts   []string
}

// Classifier ranks prototypes for items.
type Classifier struct {
	text   hints.Hint
	face   hints.Hint
	logger *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets a logger for boost decisions.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier creates a classifier. Nil hints are treated as never present.
func NewClassifier(text, face hints.Hint, opts ...Option) *Classifier {
	c := &Classifier{text: text, face: face, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify scores emb against every prototype in set and returns the ranked result. Hints
// are evaluated only when the current best score falls inside their near-threshold band.
func (c *Classifier) Classify(ctx context.Context, itemID string, emb []float32, set prototype.Set, fallback *models.Category, p Params) Result {
	res := Result{Fallback: fallback, TopK: []models.Candidate{}}
	if len(emb) == 0 || len(set) == 0 {
		return res
	}

	cands := make([]models.Candidate, len(set))
	for i, proto := range set {
		cands[i] = models.Candidate{
			CategoryID:   proto.CategoryID,
			CategoryName: proto.CategoryName,
			Score:        vector.CosineSimilarity(emb, proto.Centroid),
		}
	}
	rank(cands)

	keywords := normalizeAll(p.BoostKeywords)
	stages := []struct {
		name  string
		hint  hints.Hint
		band  float64
		boost float64
	}{
		{BoostText, c.text, p.TextNearBand, p.TextBoost},
		{BoostFace, c.face, p.FaceNearBand, p.FaceBoost},
	}
	for _, st := range stages {
		if st.hint == nil || Reaches(cands[0].Score, p.Threshold+st.band) {
			continue
		}
		if !st.hint.Present(ctx, itemID) {
			continue
		}
		Boost(cands, keywords, st.boost)
		rank(cands)
		res.Boosts = append(res.Boosts, st.name)
		c.logger.Debug("boost applied",
			zap.String("item_id", itemID), zap.String("stage", st.name),
			zap.String("best", cands[0].CategoryID), zap.Float64("score", cands[0].Score))
	}

	k := p.TopK
	if k < 1 {
		k = 1
	}
	if k > len(cands) {
		k = len(cands)
	}
	res.TopK = append(res.TopK, cands[:k]...)
	best := res.TopK[0]
	res.Best = &best
	return res
}

// Boost raises, in place, the score of every candidate whose name contains a keyword by
// boost, capped at 1. keywords must already be normalized.
func Boost(cands []models.Candidate, keywords []string, boost float64) {
	for i := range cands {
		if hints.ContainsAny(hints.Normalize(cands[i].CategoryName), keywords) {
			cands[i].Score = min(1.0, cands[i].Score+boost)
		}
	}
}

// rank sorts by score descending, breaking exact ties by category id ascending.
func rank(cands []models.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].CategoryID < cands[j].CategoryID
	})
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = hints.Normalize(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// SerializeCandidates encodes candidates as the audit JSON array
// [{"category_id","category_name","score"}], keeping non-ASCII text verbatim.
func SerializeCandidates(cands []models.Candidate) (string, error) {
	if cands == nil {
		cands = []models.Candidate{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cands); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// ParseCandidates decodes an audit JSON array written by SerializeCandidates.
func ParseCandidates(s string) ([]models.Candidate, error) {
	var out []models.Candidate
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}
