package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	Server   struct {
		BaseURL    string `json:"base_url"`
		SocketPath string `json:"socket_path"`
	} `json:"server"`
	Auth struct {
		UserName string `json:"user_name"`
		Password string `json:"password"`
	} `json:"auth"`
	Chat struct {
		PageSize        int `json:"page_size"`
		TypingIdleMS    int `json:"typing_idle_ms"`
		TypingTTLMS     int `json:"typing_ttl_ms"`
		BottomTolerance int `json:"bottom_tolerance"`
	} `json:"chat"`
	Reconnect struct {
		MaxAttempts    int     `json:"max_attempts"`
		InitialDelayMS int     `json:"initial_delay_ms"`
		Multiplier     float64 `json:"multiplier"`
		MaxDelayMS     int     `json:"max_delay_ms"`
	} `json:"reconnect"`
}

// TypingIdle is how long after the last keystroke the client emits an
// automatic stop-typing signal.
func (c *Config) TypingIdle() time.Duration {
	return time.Duration(c.Chat.TypingIdleMS) * time.Millisecond
}

// TypingTTL is the receive-side liveness bound on a typing indicator:
// an entry with no repeat signal within this window is dropped even if
// the explicit stop signal was lost.
func (c *Config) TypingTTL() time.Duration {
	return time.Duration(c.Chat.TypingTTLMS) * time.Millisecond
}

func (c *Config) ReconnectInitialDelay() time.Duration {
	return time.Duration(c.Reconnect.InitialDelayMS) * time.Millisecond
}

func (c *Config) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.Reconnect.MaxDelayMS) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir: filepath.Join(os.Getenv("HOME"), ".baochat"),
	}
	cfg.LogLevel = "info"
	cfg.Server.BaseURL = "http://localhost:8282"
	cfg.Server.SocketPath = "/ws"
	cfg.Chat.PageSize = 30
	cfg.Chat.TypingIdleMS = 2000
	cfg.Chat.TypingTTLMS = 6000
	cfg.Chat.BottomTolerance = 50
	cfg.Reconnect.MaxAttempts = 5
	cfg.Reconnect.InitialDelayMS = 500
	cfg.Reconnect.Multiplier = 2.0
	cfg.Reconnect.MaxDelayMS = 2000

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
	if serverURL := os.Getenv("BAOCHAT_SERVER_URL"); serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if userName := os.Getenv("BAOCHAT_USER"); userName != "" {
		cfg.Auth.UserName = userName
	}
	if password := os.Getenv("BAOCHAT_PASSWORD"); password != "" {
		cfg.Auth.Password = password
	}

	return cfg, nil
}

// Save writes the config as indented JSON, atomically (temp file + rename).
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config to a nested map via its JSON representation.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config map: %w", err)
	}
	return m, nil
}

// ListValues returns the flattened key/value view of the config,
// optionally masking secrets.
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

// GetValue reads the config file and returns the value at the
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
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

// SetValue updates a single dot-separated key in the config file,
// coercing the string value to the field's JSON type.
func SetValue(path, key, value string) error {
	cfg, err := Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, err := ToMap(cfg)
	if err != nil {
		return err
	}
	flat := Flatten(m)
	flat[key] = coerce(value)
	nested := Unflatten(flat)

	data, err := json.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal updated config: %w", err)
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("apply updated config: %w", err)
	}
	return Save(path, updated)
}
