package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Backend names one persistence backend.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendSupabase Backend = "supabase"
)

// TextgenProvider names one narration provider.
type TextgenProvider string

const (
	TextgenNone   TextgenProvider = "none"
	TextgenGemini TextgenProvider = "gemini"
)

// Duration decodes TOML strings such as "30m" into time.Duration values.
type Duration time.Duration

// UnmarshalText parses one Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in Go notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Textgen  TextgenConfig  `toml:"textgen"`
	Sessions SessionsConfig `toml:"sessions"`
	Server   ServerConfig   `toml:"server"`
	Supabase SupabaseConfig `toml:"supabase"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Tuning   TuningConfig   `toml:"tuning"`
}

type DatabaseConfig struct {
	Path    string  `toml:"path"`
	Backend Backend `toml:"backend"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type TextgenConfig struct {
	Provider        TextgenProvider `toml:"provider"`
	Model           string          `toml:"model"`
	Timeout         Duration        `toml:"timeout"`
	Temperature     float64         `toml:"temperature"`
	MaxOutputTokens int             `toml:"max_output_tokens"`
}

type SessionsConfig struct {
	MaxActive        int      `toml:"max_active"`
	IdleTimeout      Duration `toml:"idle_timeout"`
	SweepSchedule    string   `toml:"sweep_schedule"`
	AssessEveryTurns int      `toml:"assess_every_turns"`
	NarrationTimeout Duration `toml:"narration_timeout"`
	HistoryLimit     int      `toml:"history_limit"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// SupabaseConfig holds non-secret Supabase settings; the URL and key come from the environment.
type SupabaseConfig struct {
	URLEnv string `toml:"url_env"`
	KeyEnv string `toml:"key_env"`
}

type CatalogConfig struct {
	// ImportPath points at an optional snapshot whose activity overrides are applied at startup.
	ImportPath string `toml:"import_path"`
}

type TuningConfig struct {
	Difficulty     DifficultyTuningConfig     `toml:"difficulty"`
	Recommendation RecommendationTuningConfig `toml:"recommendation"`
}

// DifficultyTuningConfig overrides difficulty thresholds; zero keeps the stock value.
type DifficultyTuningConfig struct {
	DecreasePerformanceBelow float64 `toml:"decrease_performance_below"`
	DecreaseEngagementBelow  float64 `toml:"decrease_engagement_below"`
	DecreaseStressAbove      int     `toml:"decrease_stress_above"`
	IncreasePerformanceAbove float64 `toml:"increase_performance_above"`
	IncreaseEngagementAbove  float64 `toml:"increase_engagement_above"`
	IncreaseStressAtMost     int     `toml:"increase_stress_at_most"`
	DecreaseScale            float64 `toml:"decrease_scale"`
	IncreaseScale            float64 `toml:"increase_scale"`
	HistoryLimit             int     `toml:"history_limit"`
}

// RecommendationTuningConfig overrides recommender weights; zero keeps the stock value.
type RecommendationTuningConfig struct {
	CulturalRelevance float64 `toml:"cultural_relevance"`
	PreferredType     float64 `toml:"preferred_type"`
	GoalMatch         float64 `toml:"goal_match"`
	ConcernMatch      float64 `toml:"concern_match"`
	NeedMatch         float64 `toml:"need_match"`
	RecencyPenalty    float64 `toml:"recency_penalty"`
	Limit             int     `toml:"limit"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path:    dbPath,
			Backend: BackendSQLite,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".manas/log",
			},
		},
		Textgen: TextgenConfig{
			Provider:        TextgenNone,
			Model:           "gemini-2.0-flash",
			Timeout:         Duration(30 * time.Second),
			Temperature:     0.4,
			MaxOutputTokens: 400,
		},
		Sessions: SessionsConfig{
			MaxActive:        256,
			IdleTimeout:      Duration(30 * time.Minute),
			SweepSchedule:    "@every 5m",
			AssessEveryTurns: 2,
			NarrationTimeout: Duration(20 * time.Second),
			HistoryLimit:     20,
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Supabase: SupabaseConfig{
			URLEnv: "SUPABASE_URL",
			KeyEnv: "SUPABASE_KEY",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch Backend(strings.TrimSpace(strings.ToLower(string(c.Database.Backend)))) {
	case BackendSQLite, "":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case BackendSupabase:
		if strings.TrimSpace(c.Supabase.URLEnv) == "" || strings.TrimSpace(c.Supabase.KeyEnv) == "" {
			return errors.New("supabase.url_env and supabase.key_env are required for the supabase backend")
		}
	default:
		return fmt.Errorf("invalid database.backend: %q", c.Database.Backend)
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	switch TextgenProvider(strings.TrimSpace(strings.ToLower(string(c.Textgen.Provider)))) {
	case TextgenNone, TextgenGemini, "":
	default:
		return fmt.Errorf("invalid textgen.provider: %q", c.Textgen.Provider)
	}
	if c.Textgen.Timeout < 0 {
		return errors.New("textgen.timeout must be >= 0")
	}
	if c.Textgen.Temperature < 0 || c.Textgen.Temperature > 2 {
		return fmt.Errorf("textgen.temperature must be within [0,2]: %v", c.Textgen.Temperature)
	}

	if c.Sessions.MaxActive < 0 {
		return errors.New("sessions.max_active must be >= 0")
	}
	if c.Sessions.IdleTimeout < 0 || c.Sessions.NarrationTimeout < 0 {
		return errors.New("sessions timeouts must be >= 0")
	}
	if c.Sessions.AssessEveryTurns < 0 {
		return errors.New("sessions.assess_every_turns must be >= 0")
	}
	if c.Sessions.HistoryLimit < 0 {
		return errors.New("sessions.history_limit must be >= 0")
	}

	d := c.Tuning.Difficulty
	for name, v := range map[string]float64{
		"decrease_performance_below": d.DecreasePerformanceBelow,
		"decrease_engagement_below":  d.DecreaseEngagementBelow,
		"increase_performance_above": d.IncreasePerformanceAbove,
		"increase_engagement_above":  d.IncreaseEngagementAbove,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("tuning.difficulty.%s must be within [0,1]: %v", name, v)
		}
	}
	if d.DecreaseScale < 0 || d.DecreaseScale > 1 {
		return fmt.Errorf("tuning.difficulty.decrease_scale must be within [0,1]: %v", d.DecreaseScale)
	}
	if d.IncreaseScale != 0 && d.IncreaseScale < 1 {
		return fmt.Errorf("tuning.difficulty.increase_scale must be >= 1: %v", d.IncreaseScale)
	}
	if d.DecreaseStressAbove < 0 || d.DecreaseStressAbove > 10 || d.IncreaseStressAtMost < 0 || d.IncreaseStressAtMost > 10 {
		return errors.New("tuning.difficulty stress thresholds must be within [0,10]")
	}
	if c.Tuning.Recommendation.Limit < 0 {
		return errors.New("tuning.recommendation.limit must be >= 0")
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
