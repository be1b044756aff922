package tool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nimbusdrive/nimbus-go/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func defaultConfig() types.AppConfig {
	return types.AppConfig{
		ServerURL:     "http://127.0.0.1:8787",
		APIPrefix:     "/api/v1",
		RetentionDays: 30,
		MaxUploadMB:   100,
		RateLimitRPS:  0,
		DevPort:       8787,
	}
}

// LoadConfig reads the yaml config at path, creating it with defaults when missing.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := defaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := normalize(&cfg); err != nil {
		return cfg, err
	}

	CurrentConfig = cfg
	return cfg, nil
}

func normalize(cfg *types.AppConfig) error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("serverUrl must not be empty")
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 100
	}
	return nil
}

func writeConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}
