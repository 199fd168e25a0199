package config

import "time"

// Default keyword lists.
const (
	DefaultFaceKeywords       = "肖像,角色,人物,人像"
	DefaultPersonTextKeywords = "人像,肖像,人物,角色,写真,脸,面部,眼妆,唇,妆容,证件照,portrait,face,headshot,beauty,model,character,close-up,closeup,macro portrait"
)

// Default returns a config with every default set. Load decodes the file over it so that
// explicit zero values in the file are kept.
func Default() *Config {
	cfg := &Config{
		Classify: ClassifyConfig{
			Threshold:                  0.32,
			TopK:                       3,
			MinSamplesPerCategory:      3,
			SamplePerCategory:          200,
			FaceBoost:                  0.07,
			FaceNearBand:               0.10,
			TextBoost:                  0.03,
			TextNearBand:               0.12,
			FaceKeywords:               DefaultFaceKeywords,
			PersonTextKeywords:         DefaultPersonTextKeywords,
			IncludeDeletedInPrototypes: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg that have no meaningful
// zero setting.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/autocat/data/db/gallery.db"
	}
	if cfg.Storage.StorageRoot == "" {
		cfg.Storage.StorageRoot = "/usr/local/var/autocat/data/storage"
	}
	if cfg.Embedding.ModelKey == "" {
		cfg.Embedding.ModelKey = "open_clip_ViT-B-32"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.ImageSize == 0 {
		cfg.Embedding.ImageSize = 224
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 77
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Classify.TopK == 0 {
		cfg.Classify.TopK = 3
	}
	if cfg.Classify.MinSamplesPerCategory == 0 {
		cfg.Classify.MinSamplesPerCategory = 3
	}
	if cfg.Classify.SamplePerCategory == 0 {
		cfg.Classify.SamplePerCategory = 200
	}
	if cfg.FaceDetector.Timeout == 0 {
		cfg.FaceDetector.Timeout = 5 * time.Second
	}
	if cfg.FaceDetector.FailureThreshold == 0 {
		cfg.FaceDetector.FailureThreshold = 5
	}
	if cfg.FaceDetector.OpenTimeout == 0 {
		cfg.FaceDetector.OpenTimeout = 30 * time.Second
	}
	if cfg.Reclassify.DefaultLimit == 0 {
		cfg.Reclassify.DefaultLimit = 5000
	}
	if cfg.Reclassify.MaxSamples == 0 {
		cfg.Reclassify.MaxSamples = 50
	}
	if cfg.Reclassify.Workers == 0 {
		cfg.Reclassify.Workers = 1
	}
}
