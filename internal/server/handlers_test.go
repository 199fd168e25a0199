package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/autocat/internal/config"
	"github.com/hyperjump/autocat/internal/engine"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/storage"
	"github.com/hyperjump/autocat/internal/vector"
)

type testEnv struct {
	handler http.Handler
	store   *storage.SQLiteStorage
	eng     *engine.Engine
	unc     *models.Category
	cats    map[string]*models.Category
}

func newTestEnv(t *testing.T, seed bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "gallery.db")
	cfg.Storage.StorageRoot = dir

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	eng := engine.NewEngine(store, "test", engine.SettingsFromConfig(cfg), engine.WithStorageRoot(dir))
	env := &testEnv{
		handler: NewServer(eng, cfg, nil).Router(),
		store:   store,
		eng:     eng,
		cats:    map[string]*models.Category{},
	}
	if !seed {
		return env
	}

	ctx := context.Background()
	if env.unc, err = store.EnsureUncategorized(ctx); err != nil {
		t.Fatal(err)
	}
	for axis, name := range []string{"风景", "动物"} {
		c := &models.Category{Name: name, SortOrder: axis + 1, IsActive: true}
		if err := store.CreateCategory(ctx, c); err != nil {
			t.Fatal(err)
		}
		env.cats[name] = c
		v := make([]float32, 3)
		v[axis] = 1
		for i := 0; i < 3; i++ {
			env.addItem(t, c.ID, v)
		}
	}
	return env
}

func (e *testEnv) addItem(t *testing.T, categoryID string, emb []float32) *models.Item {
	t.Helper()
	ctx := context.Background()
	it := &models.Item{Title: "item", CategoryID: categoryID}
	if err := e.store.CreateItem(ctx, it); err != nil {
		t.Fatal(err)
	}
	blob, dim := vector.Encode(emb)
	if err := e.store.PutItemEmbedding(ctx, &models.Embedding{OwnerID: it.ID, ModelKey: "test", Dim: dim, Blob: blob}); err != nil {
		t.Fatal(err)
	}
	return it
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out errorBody
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestHandleClassifyItem(t *testing.T) {
	env := newTestEnv(t, true)
	it := env.addItem(t, env.unc.ID, []float32{0.9, 0.1, 0})

	w := env.do(t, http.MethodPost, "/api/v1/items/"+it.ID+"/classify?dry_run=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.ClassificationOutcome
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.DryRun || out.CategoryID != env.cats["风景"].ID || len(out.Candidates) != 2 {
		t.Errorf("unexpected outcome %+v", out)
	}

	stored, err := env.store.GetItem(context.Background(), it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CategoryID != env.unc.ID {
		t.Error("dry run request should not persist")
	}
}

func TestHandleClassifyItem_Errors(t *testing.T) {
	env := newTestEnv(t, true)
	it := env.addItem(t, env.unc.ID, []float32{0.9, 0.1, 0})

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown item", "/api/v1/items/missing/classify", http.StatusNotFound, "NOT_FOUND"},
		{"bad dry_run", "/api/v1/items/" + it.ID + "/classify?dry_run=maybe", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"threshold out of range", "/api/v1/items/" + it.ID + "/classify?threshold=1.5", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.target, "")
			if w.Code != tt.status {
				t.Fatalf("status: got %d, want %d", w.Code, tt.status)
			}
			if got := decodeError(t, w).Error.Code; got != tt.code {
				t.Errorf("code: got %q, want %q", got, tt.code)
			}
		})
	}
}

func TestHandleReclassify(t *testing.T) {
	env := newTestEnv(t, true)
	env.addItem(t, env.unc.ID, []float32{0.9, 0.1, 0})

	w := env.do(t, http.MethodPost, "/api/v1/maintenance/reclassify", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var report models.ReclassifyReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if !report.DryRun || report.Status != "ok" || report.Scanned != 7 {
		t.Errorf("empty body should run the default dry run, got %+v", report)
	}

	w = env.do(t, http.MethodPost, "/api/v1/maintenance/reclassify", `{"limit": 1, "dry_run": false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	report = models.ReclassifyReport{}
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.DryRun || report.Scanned != 1 || report.Applied != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestHandleReclassify_Validation(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"zero limit", `{"limit": 0}`, "VALIDATION_ERROR", "limit"},
		{"threshold too high", `{"threshold": 2}`, "VALIDATION_ERROR", "threshold"},
		{"malformed", `{"limit": `, "INVALID_BODY", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/maintenance/reclassify", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d", w.Code)
			}
			body := decodeError(t, w)
			if body.Error.Code != tt.code {
				t.Errorf("code: got %q, want %q", body.Error.Code, tt.code)
			}
			if tt.field != "" && body.Error.Details["field"] != tt.field {
				t.Errorf("field: got %v, want %s", body.Error.Details["field"], tt.field)
			}
		})
	}
}

func TestHandleReclassify_NoCategories(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/v1/maintenance/reclassify", "{}")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := decodeError(t, w).Error.Code; got != "NO_CATEGORIES" {
		t.Errorf("code: got %q", got)
	}
}

func TestHandleSetCategoryAndLock(t *testing.T) {
	env := newTestEnv(t, true)
	it := env.addItem(t, env.unc.ID, []float32{0.9, 0.1, 0})
	ctx := context.Background()

	w := env.do(t, http.MethodPut, "/api/v1/items/"+it.ID+"/category", `{"category_id": "`+env.cats["动物"].ID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	stored, _ := env.store.GetItem(ctx, it.ID)
	if stored.CategoryID != env.cats["动物"].ID || !stored.IsCategoryLocked {
		t.Errorf("expected locked 动物, got %+v", stored)
	}

	w = env.do(t, http.MethodPut, "/api/v1/items/"+it.ID+"/category", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing category_id: got %d", w.Code)
	}
	w = env.do(t, http.MethodPut, "/api/v1/items/"+it.ID+"/category", `{"category_id": "nope"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown category: got %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/items/"+it.ID+"/lock", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unlock status: got %d", w.Code)
	}
	stored, _ = env.store.GetItem(ctx, it.ID)
	if stored.IsCategoryLocked {
		t.Error("expected item unlocked")
	}

	w = env.do(t, http.MethodPut, "/api/v1/items/"+it.ID+"/lock", "")
	if w.Code != http.StatusOK {
		t.Fatalf("lock status: got %d", w.Code)
	}
	stored, _ = env.store.GetItem(ctx, it.ID)
	if !stored.IsCategoryLocked {
		t.Error("expected item locked")
	}
}

func TestHandleConfig(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/maintenance/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Status       string         `json:"status"`
		AutoCategory map[string]any `json:"auto_category"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" {
		t.Errorf("status field = %q", out.Status)
	}
	for key, want := range map[string]any{
		"threshold":           0.32,
		"topk":                float64(3),
		"min_samples_per_cat": float64(3),
		"sample_per_cat":      float64(200),
		"face_boost":          0.07,
		"face_near_band":      0.1,
		"text_boost":          0.03,
		"text_near_band":      0.12,
		"face_keywords":       config.DefaultFaceKeywords,
	} {
		if out.AutoCategory[key] != want {
			t.Errorf("%s = %v, want %v", key, out.AutoCategory[key], want)
		}
	}
}

func TestHandlePrototypesAndStatus(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodGet, "/api/v1/prototypes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var protos struct {
		Count      int `json:"count"`
		Prototypes []struct {
			CategoryName string `json:"category_name"`
			SampleCount  int    `json:"sample_count"`
		} `json:"prototypes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&protos); err != nil {
		t.Fatal(err)
	}
	if protos.Count != 2 || protos.Prototypes[0].CategoryName != "风景" || protos.Prototypes[0].SampleCount != 3 {
		t.Errorf("unexpected prototypes %+v", protos)
	}

	w = env.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st engine.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Items != 6 || st.Categories != 3 || st.ItemEmbeddings != 6 || st.DiskUsageBytes <= 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestHandleEncoderUnavailable(t *testing.T) {
	env := newTestEnv(t, true)
	it := env.addItem(t, env.unc.ID, []float32{0.9, 0.1, 0})

	for _, target := range []string{"/api/v1/items/" + it.ID + "/embed", "/api/v1/categories/embeddings"} {
		w := env.do(t, http.MethodPost, target, "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: got %d", target, w.Code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "autocat_api_requests_total") {
		t.Error("expected API request metrics to be exported")
	}
}
