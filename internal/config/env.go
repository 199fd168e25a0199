package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTOCAT_"

// envKeys maps override names (without EnvPrefix) to yaml config paths.
var envKeys = map[string]string{
	"debug": "debug",

	"host": "server.host",
	"port": "server.port",

	"database_path": "storage.database_path",
	"storage_root":  "storage.storage_root",

	"image_model_path": "embedding.image_model_path",
	"text_model_path":  "embedding.text_model_path",
	"model_key":        "embedding.model_key",

	"threshold":               "classify.threshold",
	"topk":                    "classify.top_k",
	"min_samples_per_cat":     "classify.min_samples_per_category",
	"sample_per_cat":          "classify.sample_per_category",
	"face_boost":              "classify.face_boost",
	"face_near_band":          "classify.face_near_band",
	"text_boost":              "classify.text_boost",
	"text_near_band":          "classify.text_near_band",
	"face_keywords":           "classify.face_keywords",
	"person_text_keywords":    "classify.person_text_keywords",
	"include_deleted":         "classify.include_deleted_in_prototypes",
	"text_prototype_fallback": "classify.text_prototype_fallback",

	"face_detector_endpoint": "face_detector.endpoint",

	"reclassify_workers": "reclassify.workers",
}

// envTransform turns AUTOCAT_TOPK into classify.top_k. Unknown names are dropped.
func envTransform(key string) string {
	name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envKeys[name]
}

// ApplyEnv overrides cfg fields from AUTOCAT_* environment variables. Fields without an
// override keep the values already in cfg.
func ApplyEnv(cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}
