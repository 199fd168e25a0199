package main

import (
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/config"
	"github.com/hyperjump/autocat/internal/prototype"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after item id are moved first",
			args:     []string{"ITEM1", "-dry-run", "-threshold", "0.5"},
			expected: []string{"-dry-run", "-threshold", "0.5", "ITEM1"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-dry-run", "ITEM1"},
			expected: []string{"-dry-run", "ITEM1"},
		},
		{
			name:     "item id only returns unchanged",
			args:     []string{"ITEM1"},
			expected: []string{"ITEM1"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-limit", "5"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "-force"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"dangling flag", []string{"-config"}, "/default.yaml", "/default.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := configPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("configPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReclassifyLimitFromConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
reclassify:
  default_limit: 250
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if got := reclassifyLimitFromConfig(configPath); got != 250 {
		t.Errorf("reclassifyLimitFromConfig() = %d, want 250", got)
	}
	want := config.Default().Reclassify.DefaultLimit
	if got := reclassifyLimitFromConfig(filepath.Join(dir, "nonexistent.yaml")); got != want {
		t.Errorf("reclassifyLimitFromConfig(nonexistent) = %d, want %d", got, want)
	}
}

func TestFlagWasSet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	_ = fs.Float64("threshold", 0, "")
	_ = fs.Bool("dry-run", false, "")
	if err := fs.Parse([]string{"-threshold", "0"}); err != nil {
		t.Fatal(err)
	}
	if !flagWasSet(fs, "threshold") {
		t.Error("threshold given explicitly as 0 should count as set")
	}
	if flagWasSet(fs, "dry-run") {
		t.Error("dry-run was not given")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
classify:
  threshold: 0.4
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Classify.Threshold != 0.4 {
		t.Errorf("threshold = %v, want 0.4", cfg.Classify.Threshold)
	}
}

func TestInitializeComponents_withoutModels(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "autocat.db")
	cfg.Embedding.ImageModelPath = ""
	cfg.Embedding.TextModelPath = ""

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Encoder != nil {
		t.Error("no encoder should be loaded without model paths")
	}
	_, err = c.Engine.Prototypes(t.Context())
	if !errors.Is(err, prototype.ErrNoCategoriesAvailable) {
		t.Errorf("empty corpus: err = %v, want ErrNoCategoriesAvailable", err)
	}
}

func TestCallAPI_errorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/nocat":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":"NO_CATEGORIES","message":"seed first"}}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"item not found"}}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ok","count":2}`))
		}
	}))
	defer srv.Close()

	err := callAPI(http.MethodGet, srv.URL+"/nocat", nil, nil)
	if !errors.Is(err, prototype.ErrNoCategoriesAvailable) {
		t.Errorf("NO_CATEGORIES should map to ErrNoCategoriesAvailable, got %v", err)
	}
	if err := callAPI(http.MethodGet, srv.URL+"/missing", nil, nil); err == nil {
		t.Error("expected error for 404")
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := callAPI(http.MethodPost, srv.URL+"/ok", map[string]int{"limit": 1}, &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 {
		t.Errorf("count = %d, want 2", out.Count)
	}
}
