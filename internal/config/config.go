package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Video         struct {
		BaseURL          string `json:"base_url"`
		APIKey           string `json:"api_key"`
		Model            string `json:"model"`
		Enabled          bool   `json:"enabled"`
		TimeoutSeconds   int    `json:"timeout_seconds"`
		MaxRetryAttempts int    `json:"max_retry_attempts"`
		MaxPromptTokens  int    `json:"max_prompt_tokens"`
		Download         bool   `json:"download"`
		KeepLocal        bool   `json:"keep_local"`
		RetentionHours   int    `json:"retention_hours"`
	} `json:"video"`
	Groups struct {
		Mode string   `json:"mode"`
		List []string `json:"list"`
	} `json:"groups"`
	RateLimit struct {
		Enabled       bool `json:"enabled"`
		WindowSeconds int  `json:"window_seconds"`
		MaxCalls      int  `json:"max_calls"`
	} `json:"rate_limit"`
	Admins   []string `json:"admins"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".reelbot"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.Video.BaseURL = "https://api.x.ai"
	cfg.Video.Model = "grok-imagine-0.9"
	cfg.Video.Enabled = true
	cfg.Video.TimeoutSeconds = 180
	cfg.Video.MaxRetryAttempts = 3
	cfg.Video.Download = true
	cfg.Groups.Mode = "off"
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.WindowSeconds = 3600
	cfg.RateLimit.MaxCalls = 5
	cfg.HTTP.Listen = "127.0.0.1:8790"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("XAI_API_KEY"); apiKey != "" {
		cfg.Video.APIKey = apiKey
	}
	if baseURL := os.Getenv("VIDEO_BASE_URL"); baseURL != "" {
		cfg.Video.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

// Save writes the config atomically via a temp file rename.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config into a nested map through its JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns every config value as a flat dot-keyed map. When mask is
// true, secret values are shown as "***xxxx".
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads the config file at path and returns the value for a
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	val, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return val, nil
}

// SetValue updates one dot-separated key in the config file at path. The
// string value is coerced: valid JSON (numbers, booleans, arrays) is used
// as-is, anything else is stored as a string.
func SetValue(path, key, value string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	m, err := ToMap(cfg)
	if err != nil {
		return err
	}
	flat := Flatten(m)
	if _, ok := flat[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	var coerced any
	if err := json.Unmarshal([]byte(value), &coerced); err != nil {
		coerced = value
	}
	flat[key] = coerced

	nested := Unflatten(flat)
	data, err := json.Marshal(nested)
	if err != nil {
		return err
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Save(path, updated)
}
