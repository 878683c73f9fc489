package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultStoreName is the pizzeria the bot answers for unless configured.
const DefaultStoreName = "La Pizzaria Jardim Roriz"

type Config struct {
	DataDir            string `json:"data_dir"`
	LogLevel           string `json:"log_level"`
	MaxConcurrent      int    `json:"max_concurrent"`
	CallTimeoutSeconds int    `json:"call_timeout_seconds"`
	Store              struct {
		Name        string `json:"name"`
		MenuPath    string `json:"menu_path"`
		MenuURL     string `json:"menu_url"`
		MenuRefresh string `json:"menu_refresh"`
		PromptPath  string `json:"prompt_path"`
	} `json:"store"`
	LLM struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	Storage struct {
		Backend  string `json:"backend"`
		RedisURL string `json:"redis_url"`
	} `json:"storage"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	HTTP struct {
		Enabled     bool   `json:"enabled"`
		Listen      string `json:"listen"`
		OutboundURL string `json:"outbound_url"`
		Secret      string `json:"secret"`
	} `json:"http"`
}

// CallTimeout is the deadline applied to each completion, store and send call.
func (c *Config) CallTimeout() time.Duration {
	if c.CallTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

func defaults() *Config {
	cfg := &Config{
		DataDir:            filepath.Join(os.Getenv("HOME"), ".orderbot"),
		MaxConcurrent:      4,
		CallTimeoutSeconds: 30,
	}
	cfg.LogLevel = "info"
	cfg.Store.Name = DefaultStoreName
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-3.5-turbo"
	cfg.LLM.MaxTokens = 256
	cfg.LLM.Temperature = 0
	cfg.LLM.MaxContextTokens = 16385
	cfg.LLM.OutputReserve = 256
	cfg.Storage.Backend = "file"
	cfg.HTTP.Listen = "127.0.0.1:8484"
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Storage.RedisURL = redisURL
	}
	if name := os.Getenv("ORDERBOT_STORE_NAME"); name != "" {
		cfg.Store.Name = name
	}

	return cfg, nil
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	// The file may hold API keys.
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its generic JSON form.
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

// ListValues returns cfg as dot-separated keys, optionally masking secrets.
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

// GetValue returns the effective value of key, env overrides included.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	// Keys outside the struct survive only in the raw file.
	if raw, err := readRaw(path); err == nil {
		for k, v := range Flatten(raw) {
			if _, ok := flat[k]; !ok {
				flat[k] = v
			}
		}
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets key in the config file at path. The value is decoded as
// JSON when possible so numbers and booleans keep their type.
func SetValue(path, key, value string) error {
	raw, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(raw)

	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		v = value
	}
	flat[key] = v

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return raw, nil
}

// Validate reports settings the daemon cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Store.Name) == "" {
		problems = append(problems, "store.name is empty")
	}
	if c.Store.PromptPath != "" {
		if _, err := os.Stat(c.Store.PromptPath); err != nil {
			problems = append(problems, fmt.Sprintf("store.prompt_path: %v", err))
		}
	}
	if c.Store.MenuURL != "" {
		if u, err := url.Parse(c.Store.MenuURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("store.menu_url %q is not an http(s) URL", c.Store.MenuURL))
		}
	}
	if c.Store.MenuRefresh != "" && c.Store.MenuPath == "" && c.Store.MenuURL == "" {
		problems = append(problems, "store.menu_refresh is set without store.menu_path or store.menu_url")
	}
	if c.LLM.Model == "" {
		problems = append(problems, "llm.model is empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("llm.temperature %v is outside 0..2", c.LLM.Temperature))
	}
	switch c.Storage.Backend {
	case "file", "memory":
	case "redis":
		if c.Storage.RedisURL == "" {
			problems = append(problems, "storage.redis_url is required for the redis backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.HTTP.Enabled && c.HTTP.Listen == "" {
		problems = append(problems, "http.listen is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
