package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mpiterm/internal/config/tomlkeys"
)

//go:embed defaults.toml
var defaultsPayload []byte

const (
	ReadinessPoll   = "poll"
	ReadinessNotify = "notify"
)

var ErrInvalidSetting = errors.New("invalid setting")

type Settings struct {
	Launcher         string
	PollInterval     time.Duration
	Timeout          time.Duration
	Readiness        string
	PauseBeforeClose bool
	SessionPrefix    string
	LogLevel         string
	Dtach            string
	Tmux             string
	ScopeParent      string
	OTel             OTelSettings
}

type OTelSettings struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// DefaultPath returns the per-user config file location, or "" when the
// platform reports no config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, "mpiterm", "config.toml")
}

func Defaults() (Settings, error) {
	return LoadSettings("", nil)
}

// LoadSettings layers the embedded defaults, the file at path (a missing
// file is skipped) and overrides, in that order.
func LoadSettings(path string, overrides map[string]any) (Settings, error) {
	defaultsStore, err := tomlkeys.Decode(defaultsPayload)
	if err != nil {
		return Settings{}, fmt.Errorf("decode defaults: %w", err)
	}
	values := defaultsStore

	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Settings{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			store, err := tomlkeys.Decode(payload)
			if err != nil {
				return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			values = values.Merge(store.Flat())
		}
	}
	values = values.Merge(overrides)

	settings := Settings{
		Launcher:         stringSetting(values, defaultsStore, "launcher"),
		Readiness:        strings.ToLower(stringSetting(values, defaultsStore, "readiness")),
		PauseBeforeClose: boolSetting(values, defaultsStore, "pause-before-close"),
		SessionPrefix:    stringSetting(values, defaultsStore, "session-prefix"),
		LogLevel:         stringSetting(values, defaultsStore, "log-level"),
		Dtach:            stringSetting(values, defaultsStore, "dtach"),
		Tmux:             stringSetting(values, defaultsStore, "tmux"),
		ScopeParent:      optionalString(values, "scope-parent"),
		OTel: OTelSettings{
			Enabled:     boolSetting(values, defaultsStore, "otel.enabled"),
			Endpoint:    optionalString(values, "otel.endpoint"),
			ServiceName: stringSetting(values, defaultsStore, "otel.service-name"),
		},
	}

	if settings.PollInterval, err = durationSetting(values, "poll-interval"); err != nil {
		return Settings{}, err
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval, _ = durationSetting(defaultsStore, "poll-interval")
	}
	if settings.Timeout, err = durationSetting(values, "timeout"); err != nil {
		return Settings{}, err
	}
	if settings.Timeout < 0 {
		return Settings{}, fmt.Errorf("%w: timeout must not be negative", ErrInvalidSetting)
	}
	switch settings.Readiness {
	case ReadinessPoll, ReadinessNotify:
	default:
		return Settings{}, fmt.Errorf("%w: readiness %q (want %s or %s)", ErrInvalidSetting, settings.Readiness, ReadinessPoll, ReadinessNotify)
	}
	return settings, nil
}

func stringSetting(values, defaults tomlkeys.Store, key string) string {
	if value, ok := values.GetString(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	value, _ := defaults.GetString(key)
	return strings.TrimSpace(value)
}

func optionalString(values tomlkeys.Store, key string) string {
	value, _ := values.GetString(key)
	return strings.TrimSpace(value)
}

func boolSetting(values, defaults tomlkeys.Store, key string) bool {
	if value, ok := values.GetBool(key); ok {
		return value
	}
	value, _ := defaults.GetBool(key)
	return value
}

// Durations are accepted as strings ("750ms") or as whole seconds.
func durationSetting(values tomlkeys.Store, key string) (time.Duration, error) {
	if raw, ok := values.GetString(key); ok {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return 0, nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		return parsed, nil
	}
	if seconds, ok := values.GetInt(key); ok {
		return time.Duration(seconds) * time.Second, nil
	}
	if value, ok := values.Get(key); ok {
		if parsed, ok := value.(time.Duration); ok {
			return parsed, nil
		}
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidSetting, key, value)
	}
	return 0, nil
}
