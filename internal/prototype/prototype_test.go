package prototype

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/storage"
	"github.com/hyperjump/autocat/internal/vector"
)

type fakeSource struct {
	cats       []*models.Category
	members    map[string][]string
	embeddings map[string][]byte
	listErr    map[string]error
}

func (f *fakeSource) ListActiveCategories(ctx context.Context) ([]*models.Category, error) {
	return f.cats, nil
}

func (f *fakeSource) ListCategoryItemIDs(ctx context.Context, categoryID string, limit int, includeDeleted bool) ([]string, error) {
	if err := f.listErr[categoryID]; err != nil {
		return nil, err
	}
	ids := f.members[categoryID]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeSource) GetItemEmbedding(ctx context.Context, itemID, modelKey string) (*models.Embedding, error) {
	blob, ok := f.embeddings[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, storage.ErrNotFound)
	}
	return &models.Embedding{OwnerID: itemID, ModelKey: modelKey, Dim: len(blob) / 4, Blob: blob}, nil
}

func (f *fakeSource) add(categoryID, itemID string, v []float32) {
	if f.members == nil {
		f.members = map[string][]string{}
		f.embeddings = map[string][]byte{}
	}
	f.members[categoryID] = append(f.members[categoryID], itemID)
	if v != nil {
		blob, _ := vector.Encode(v)
		f.embeddings[itemID] = blob
	}
}

func TestBuild_NoCategories(t *testing.T) {
	b := NewBuilder(&fakeSource{}, "m", 200, 3)
	_, err := b.Build(context.Background(), true)
	if !errors.Is(err, ErrNoCategoriesAvailable) {
		t.Errorf("expected ErrNoCategoriesAvailable, got %v", err)
	}
}

func TestBuild_MinSamplesAndUncategorized(t *testing.T) {
	src := &fakeSource{cats: []*models.Category{
		{ID: "U", Name: models.UncategorizedName, IsActive: true},
		{ID: "A", Name: "风景", IsActive: true},
		{ID: "B", Name: "肖像", IsActive: true},
	}}
	for i := 0; i < 3; i++ {
		src.add("U", fmt.Sprintf("u%d", i), []float32{1, 0})
		src.add("A", fmt.Sprintf("a%d", i), []float32{float32(i), 1})
	}
	src.add("B", "b0", []float32{0, 1})
	src.add("B", "b1", []float32{0, 1})

	set, err := NewBuilder(src, "m", 200, 3).Build(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Fatalf("expected only category A, got %d prototypes", len(set))
	}
	p := set[0]
	if p.CategoryID != "A" || p.SampleCount != 3 {
		t.Errorf("unexpected prototype %+v", p)
	}
	if p.Centroid[0] != 1 || p.Centroid[1] != 1 {
		t.Errorf("expected centroid [1 1], got %v", p.Centroid)
	}
}

func TestBuild_SkipsMissingAndMismatched(t *testing.T) {
	src := &fakeSource{cats: []*models.Category{{ID: "A", Name: "动物", IsActive: true}}}
	src.add("A", "a0", []float32{1, 0})
	src.add("A", "a1", []float32{0, 1})
	src.add("A", "a2", []float32{1, 1, 1})
	src.add("A", "a3", nil)
	src.embeddings["a4"] = []byte{1, 2, 3}
	src.members["A"] = append(src.members["A"], "a4")

	set, err := NewBuilder(src, "m", 200, 2).Build(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Fatalf("expected 1 prototype, got %d", len(set))
	}
	if set[0].SampleCount != 2 {
		t.Errorf("expected 2 usable samples, got %d", set[0].SampleCount)
	}
	if set[0].Centroid[0] != 0.5 || set[0].Centroid[1] != 0.5 {
		t.Errorf("unexpected centroid %v", set[0].Centroid)
	}

	set, err = NewBuilder(src, "m", 200, 3).Build(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 0 {
		t.Errorf("expected no prototypes with min 3, got %d", len(set))
	}
}

func TestBuild_SampleCapAndListingError(t *testing.T) {
	src := &fakeSource{
		cats: []*models.Category{
			{ID: "A", Name: "风景", IsActive: true},
			{ID: "B", Name: "建筑", IsActive: true},
		},
		listErr: map[string]error{"B": errors.New("boom")},
	}
	src.add("A", "new", []float32{1, 0})
	src.add("A", "old", []float32{0, 1})
	src.add("B", "b0", []float32{1, 0})

	set, err := NewBuilder(src, "m", 1, 1).Build(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 || set[0].CategoryID != "A" {
		t.Fatalf("unexpected set %+v", set)
	}
	if set[0].Centroid[0] != 1 || set[0].Centroid[1] != 0 {
		t.Errorf("expected only the newest sample, got %v", set[0].Centroid)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	src := &fakeSource{cats: []*models.Category{
		{ID: "A", Name: "风景", IsActive: true},
		{ID: "B", Name: "肖像", IsActive: true},
	}}
	for i := 0; i < 4; i++ {
		src.add("A", fmt.Sprintf("a%d", i), []float32{float32(i) * 0.1, 1})
		src.add("B", fmt.Sprintf("b%d", i), []float32{1, float32(i) * 0.2})
	}
	b := NewBuilder(src, "m", 200, 3)
	first, _ := b.Build(context.Background(), true)
	second, _ := b.Build(context.Background(), true)
	if len(first) != len(second) {
		t.Fatal("set sizes differ")
	}
	for i := range first {
		if first[i].CategoryID != second[i].CategoryID {
			t.Errorf("order differs at %d", i)
		}
		for j := range first[i].Centroid {
			if first[i].Centroid[j] != second[i].Centroid[j] {
				t.Errorf("centroid differs at %d/%d", i, j)
			}
		}
	}
}

func TestFromCategoryEmbeddings(t *testing.T) {
	cats := []*models.Category{
		{ID: "U", Name: models.UncategorizedName, IsActive: true},
		{ID: "A", Name: "风景", IsActive: true},
		{ID: "B", Name: "肖像", IsActive: true},
	}
	blobA, dimA := vector.Encode([]float32{1, 0})
	blobU, dimU := vector.Encode([]float32{0, 1})
	embs := []*models.Embedding{
		{OwnerID: "A", Dim: dimA, Blob: blobA},
		{OwnerID: "U", Dim: dimU, Blob: blobU},
		{OwnerID: "B", Dim: 3, Blob: blobA},
	}
	set := FromCategoryEmbeddings(cats, embs)
	if len(set) != 1 || set[0].CategoryID != "A" {
		t.Errorf("expected only A, got %+v", set)
	}
}
