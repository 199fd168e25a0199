package benchmark

import (
	"context"
	"math/rand"
	"testing"

	"github.com/hyperjump/autocat/internal/classify"
	"github.com/hyperjump/autocat/internal/embedding"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/prototype"
	"github.com/hyperjump/autocat/internal/vector"
	"github.com/hyperjump/autocat/pkg/utils"
)

const dims = 512

func randomVector(r *rand.Rand) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	utils.NormalizeL2(v)
	return v
}

func BenchmarkClassify(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	set := make(prototype.Set, 27)
	for i := range set {
		set[i] = prototype.Prototype{
			CategoryID:   string(rune('A' + i)),
			CategoryName: string(rune('A' + i)),
			Centroid:     randomVector(r),
			SampleCount:  200,
		}
	}
	unc := &models.Category{ID: "UNC", Name: models.UncategorizedName, IsActive: true}
	c := classify.NewClassifier(nil, nil)
	p := classify.Params{TopK: 3, Threshold: 0.32}
	emb := randomVector(r)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Classify(ctx, "item", emb, set, unc, p)
	}
}

func BenchmarkMean(b *testing.B) {
	r := rand.New(rand.NewSource(2))
	vs := make([][]float32, 200)
	for i := range vs {
		vs[i] = randomVector(r)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = vector.Mean(vs)
	}
}

func BenchmarkDecode(b *testing.B) {
	blob, dim := vector.Encode(randomVector(rand.New(rand.NewSource(3))))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = vector.Decode(blob, dim)
	}
}

func BenchmarkMockEncoder_EncodeTexts(b *testing.B) {
	e := embedding.NewMockEncoder(dims, "mock")
	ctx := context.Background()
	names := []string{"风景", "动物", "肖像", "建筑"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.EncodeTexts(ctx, names)
	}
}
