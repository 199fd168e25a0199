// Package config provides configuration loading and structs for the autocat server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Classify     ClassifyConfig     `yaml:"classify"`
	FaceDetector FaceDetectorConfig `yaml:"face_detector"`
	Reclassify   ReclassifyConfig   `yaml:"reclassify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database path and the media storage root.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	// StorageRoot is the directory item media/thumb/poster paths are relative to.
	StorageRoot string `yaml:"storage_root"`
}

// EmbeddingConfig holds ONNX encoder settings.
type EmbeddingConfig struct {
	ImageModelPath string `yaml:"image_model_path"`
	TextModelPath  string `yaml:"text_model_path"`
	ModelKey       string `yaml:"model_key"`
	Dimensions     int    `yaml:"dimensions"`
	ImageSize      int    `yaml:"image_size"`
	MaxTokens      int    `yaml:"max_tokens"`
	CacheSize      int    `yaml:"cache_size"`
}

// ClassifyConfig holds the classification tuning parameters.
type ClassifyConfig struct {
	Threshold             float64 `yaml:"threshold" json:"threshold"`
	TopK                  int     `yaml:"top_k" json:"topk"`
	MinSamplesPerCategory int     `yaml:"min_samples_per_category" json:"min_samples_per_cat"`
	SamplePerCategory     int     `yaml:"sample_per_category" json:"sample_per_cat"`
	FaceBoost             float64 `yaml:"face_boost" json:"face_boost"`
	FaceNearBand          float64 `yaml:"face_near_band" json:"face_near_band"`
	TextBoost             float64 `yaml:"text_boost" json:"text_boost"`
	TextNearBand          float64 `yaml:"text_near_band" json:"text_near_band"`
	// FaceKeywords select the categories that receive boosts, comma-separated.
	FaceKeywords string `yaml:"face_keywords" json:"face_keywords"`
	// PersonTextKeywords are searched in item text by the text hint, comma-separated.
	PersonTextKeywords         string `yaml:"person_text_keywords" json:"person_text_keywords"`
	IncludeDeletedInPrototypes bool   `yaml:"include_deleted_in_prototypes" json:"include_deleted_in_prototypes"`
	// TextPrototypeFallback uses category-name embeddings when no category has enough samples.
	TextPrototypeFallback bool `yaml:"text_prototype_fallback" json:"text_prototype_fallback"`
}

// FaceDetectorConfig holds the external face detector settings. An empty endpoint disables
// face detection.
type FaceDetectorConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// ReclassifyConfig holds batch reclassification settings.
type ReclassifyConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxSamples   int `yaml:"max_samples"`
	Workers      int `yaml:"workers"`
}

// Load reads and parses the config file at path over the defaults, expands paths, and
// applies environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.StorageRoot = expandPath(cfg.Storage.StorageRoot, configDir)
	cfg.Embedding.ImageModelPath = expandPath(cfg.Embedding.ImageModelPath, configDir)
	cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
