package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hylla/manas/internal/activity"
	"github.com/hylla/manas/internal/adapters/storage/sqlite"
	"github.com/hylla/manas/internal/adapters/storage/supabase"
	"github.com/hylla/manas/internal/adapters/textgen/gemini"
	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/config"
	"github.com/joho/godotenv"
)

// geminiAPIKeyEnv names the environment variable holding the narration key.
const geminiAPIKeyEnv = "GEMINI_API_KEY"

// store is the persistence surface both backends satisfy.
type store interface {
	app.ProfileStore
	app.SessionRecorder
}

// loadDotEnv loads provider secrets from the given dotenv files without overriding the environment.
func loadDotEnv(paths ...string) ([]string, error) {
	loaded := make([]string, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat env file %q: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load env file %q: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// openStore opens the configured persistence backend.
func openStore(cfg config.Config, logger *runtimeLogger) (store, func() error, error) {
	backend := config.Backend(strings.TrimSpace(strings.ToLower(string(cfg.Database.Backend))))
	switch backend {
	case config.BackendSupabase:
		url := strings.TrimSpace(os.Getenv(cfg.Supabase.URLEnv))
		key := strings.TrimSpace(os.Getenv(cfg.Supabase.KeyEnv))
		logger.Info("opening supabase store", "url_env", cfg.Supabase.URLEnv)
		s, err := supabase.Open(url, key)
		if err != nil {
			return nil, nil, fmt.Errorf("open supabase store: %w", err)
		}
		return s, func() error { return nil }, nil
	default:
		logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
			return nil, nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")
		return repo, repo.Close, nil
	}
}

// newNarrator builds the configured narration provider, or nil for template-only output.
func newNarrator(cfg config.TextgenConfig, logger *runtimeLogger) (activity.Narrator, error) {
	switch config.TextgenProvider(strings.TrimSpace(strings.ToLower(string(cfg.Provider)))) {
	case config.TextgenGemini:
		client, err := gemini.New(gemini.Config{
			APIKey:          os.Getenv(geminiAPIKeyEnv),
			Model:           cfg.Model,
			Timeout:         cfg.Timeout.Std(),
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("configure gemini narrator: %w", err)
		}
		logger.Info("gemini narration enabled", "model", cfg.Model)
		return client, nil
	default:
		logger.Debug("narration disabled; using step templates")
		return nil, nil
	}
}

// loadCatalog returns the stock catalog with optional snapshot overrides applied.
func loadCatalog(importPath string) (*app.Catalog, error) {
	catalog := app.DefaultCatalog()
	importPath = strings.TrimSpace(importPath)
	if importPath == "" {
		return catalog, nil
	}
	snap, err := readSnapshot(importPath)
	if err != nil {
		return nil, err
	}
	if err := app.ImportActivities(catalog, snap); err != nil {
		return nil, fmt.Errorf("import catalog overrides: %w", err)
	}
	return catalog, nil
}

// readSnapshot decodes one snapshot JSON file.
func readSnapshot(path string) (app.Snapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode snapshot json: %w", err)
	}
	return snap, nil
}

// serviceConfig maps file config onto engine tuning.
func serviceConfig(cfg config.Config, catalog *app.Catalog, narrator activity.Narrator, logger app.Logger) app.ServiceConfig {
	difficulty := app.DefaultDifficultyTuning()
	d := cfg.Tuning.Difficulty
	overrideFloat(&difficulty.DecreasePerformanceBelow, d.DecreasePerformanceBelow)
	overrideFloat(&difficulty.DecreaseEngagementBelow, d.DecreaseEngagementBelow)
	overrideInt(&difficulty.DecreaseStressAbove, d.DecreaseStressAbove)
	overrideFloat(&difficulty.IncreasePerformanceAbove, d.IncreasePerformanceAbove)
	overrideFloat(&difficulty.IncreaseEngagementAbove, d.IncreaseEngagementAbove)
	overrideInt(&difficulty.IncreaseStressAtMost, d.IncreaseStressAtMost)
	overrideFloat(&difficulty.DecreaseScale, d.DecreaseScale)
	overrideFloat(&difficulty.IncreaseScale, d.IncreaseScale)
	overrideInt(&difficulty.HistoryLimit, d.HistoryLimit)

	weights := app.DefaultRecommendationWeights()
	r := cfg.Tuning.Recommendation
	overrideFloat(&weights.CulturalRelevance, r.CulturalRelevance)
	overrideFloat(&weights.PreferredType, r.PreferredType)
	overrideFloat(&weights.GoalMatch, r.GoalMatch)
	overrideFloat(&weights.ConcernMatch, r.ConcernMatch)
	overrideFloat(&weights.NeedMatch, r.NeedMatch)
	overrideFloat(&weights.RecencyPenalty, r.RecencyPenalty)
	overrideInt(&weights.Limit, r.Limit)

	return app.ServiceConfig{
		Catalog:  catalog,
		Narrator: narrator,
		Logger:   logger,
		Sessions: app.SessionTuning{
			MaxActive:        cfg.Sessions.MaxActive,
			IdleTimeout:      cfg.Sessions.IdleTimeout.Std(),
			AssessEveryTurns: cfg.Sessions.AssessEveryTurns,
			NarrationTimeout: cfg.Sessions.NarrationTimeout.Std(),
		},
		Difficulty:     difficulty,
		Recommendation: weights,
	}
}

func overrideFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func overrideInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// newService wires stores, narration, and tuning into one engine.
func newService(cfg config.Config, st store, logger *runtimeLogger) (*app.Service, error) {
	catalog, err := loadCatalog(cfg.Catalog.ImportPath)
	if err != nil {
		return nil, err
	}
	narrator, err := newNarrator(cfg.Textgen, logger)
	if err != nil {
		return nil, err
	}
	var (
		profiles app.ProfileStore
		recorder app.SessionRecorder
	)
	if st != nil {
		profiles, recorder = st, st
	}
	svc := app.NewService(profiles, recorder, uuid.NewString, nil, serviceConfig(cfg, catalog, narrator, logger))
	logger.Debug("application service initialized", "activities", catalog.Len(), "narration", narrator != nil)
	return svc, nil
}
