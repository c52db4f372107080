package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/config"
	"github.com/hylla/manas/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("MANAS_DEV_MODE", "false")
	os.Exit(m.Run())
}

// cliEnv holds isolated config and database paths for one test.
type cliEnv struct {
	dir    string
	cfg    string
	db     string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// newCLIEnv creates a temp workspace and moves into it.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return &cliEnv{
		dir: dir,
		cfg: filepath.Join(dir, "config.toml"),
		db:  filepath.Join(dir, "manas.db"),
	}
}

// run executes one CLI invocation against the env paths.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	e.stdout.Reset()
	e.stderr.Reset()
	root := newRootCommand(strings.NewReader(stdin), &e.stdout, &e.stderr)
	root.SetArgs(append([]string{"--config", e.cfg, "--db", e.db}, args...))
	return root.ExecuteContext(context.Background())
}

// TestPathsCommand verifies resolved paths reflect app and dev flags.
func TestPathsCommand(t *testing.T) {
	var out strings.Builder
	root := newRootCommand(strings.NewReader(""), &out, io.Discard)
	root.SetArgs([]string{"--app", "manasx", "--dev", "paths"})
	if err := root.Execute(); err != nil {
		t.Fatalf("paths error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: manasx", "dev_mode: true", "manasx-dev"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

// TestUnknownCommand verifies cobra rejects unknown subcommands.
func TestUnknownCommand(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "", "nope"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

// TestCatalogCommand verifies category filtering and JSON output.
func TestCatalogCommand(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "", "catalog", "--category", "mindfulness", "--json"); err != nil {
		t.Fatalf("catalog error = %v", err)
	}
	var entries []domain.ActivityMetadata
	if err := json.Unmarshal(env.stdout.Bytes(), &entries); err != nil {
		t.Fatalf("decode catalog json: %v\n%s", err, env.stdout.String())
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 mindfulness entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Category != domain.CategoryMindfulness {
			t.Fatalf("unexpected category %q", entry.Category)
		}
	}

	if err := env.run(t, "", "catalog"); err != nil {
		t.Fatalf("catalog text error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), "crisis_intervention") {
		t.Fatalf("expected full listing, got %q", env.stdout.String())
	}

	if err := env.run(t, "", "catalog", "--category", "nonsense"); err == nil {
		t.Fatal("expected unknown category error")
	}
}

// TestProfileSetAndShow verifies profiles round-trip through sqlite.
func TestProfileSetAndShow(t *testing.T) {
	env := newCLIEnv(t)
	profile := `{"user_id":"u1","demographics":{"cultural_background":"Indian"},"current_state":{"stress_level":6}}`
	if err := env.run(t, profile, "profile", "set"); err != nil {
		t.Fatalf("profile set error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), "saved profile u1") {
		t.Fatalf("unexpected set output %q", env.stdout.String())
	}

	if err := env.run(t, "", "profile", "show", "--user", "u1"); err != nil {
		t.Fatalf("profile show error = %v", err)
	}
	var got domain.UserContext
	if err := json.Unmarshal(env.stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if got.Demographics.CulturalBackground != domain.CulturalBackgroundIndian || got.CurrentState.StressLevel != 6 {
		t.Fatalf("unexpected stored profile %#v", got)
	}

	if err := env.run(t, `{"user_id":"u2","current_state":{"stress_level":42}}`, "profile", "set"); err == nil {
		t.Fatal("expected invalid stress level to fail")
	}
}

// TestRecommendModes verifies ranked, crisis, and quick modes.
func TestRecommendModes(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "", "recommend", "--user", "u1", "--limit", "3", "--json"); err != nil {
		t.Fatalf("recommend error = %v", err)
	}
	var recs []domain.ActivityRecommendation
	if err := json.Unmarshal(env.stdout.Bytes(), &recs); err != nil {
		t.Fatalf("decode recs: %v", err)
	}
	if len(recs) == 0 || len(recs) > 3 {
		t.Fatalf("expected 1..3 recommendations, got %d", len(recs))
	}

	if err := env.run(t, "", "recommend", "--user", "u1", "--mode", "crisis", "--json"); err != nil {
		t.Fatalf("recommend crisis error = %v", err)
	}
	recs = nil
	if err := json.Unmarshal(env.stdout.Bytes(), &recs); err != nil {
		t.Fatalf("decode crisis recs: %v", err)
	}
	if len(recs) == 0 || recs[0].Urgency != domain.UrgencyImmediate {
		t.Fatalf("expected immediate crisis recommendations, got %#v", recs)
	}

	if err := env.run(t, "", "recommend", "--mode", "sideways"); err == nil {
		t.Fatal("expected unknown mode error")
	}
}

// TestPracticeCompletesAndRecordsHistory verifies the interactive loop persists a finished session.
func TestPracticeCompletesAndRecordsHistory(t *testing.T) {
	env := newCLIEnv(t)
	input := "I feel a little calmer\n/pause\n/resume\nmy shoulders relaxed\n/done\n"
	if err := env.run(t, input, "practice", "breathing_exercise", "--user", "u1", "--style", "notty"); err != nil {
		t.Fatalf("practice error = %v\nstderr: %s", err, env.stderr.String())
	}
	out := env.stdout.String()
	for _, want := range []string{"session ", "step 1/", "paused", "resumed", "Session summary"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in practice output, got %q", want, out)
		}
	}
	if strings.Contains(env.stderr.String(), "command flow start") {
		t.Fatalf("expected console logs muted during practice, got %q", env.stderr.String())
	}

	if err := env.run(t, "", "history", "--user", "u1", "--json"); err != nil {
		t.Fatalf("history error = %v", err)
	}
	var sessions []domain.ActivitySession
	if err := json.Unmarshal(env.stdout.Bytes(), &sessions); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Type != domain.ActivityBreathingExercise {
		t.Fatalf("expected one breathing session, got %#v", sessions)
	}
	if !sessions[0].Status.IsTerminal() {
		t.Fatalf("expected terminal status, got %q", sessions[0].Status)
	}
}

// TestPracticeQuitAbandons verifies /quit abandons rather than completes.
func TestPracticeQuitAbandons(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "/quit\n", "practice", "mood_assessment", "--user", "u9", "--style", "notty"); err != nil {
		t.Fatalf("practice error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), "session abandoned") {
		t.Fatalf("expected abandoned status, got %q", env.stdout.String())
	}
}

// TestPracticeRejectsUnknownActivity verifies start errors surface.
func TestPracticeRejectsUnknownActivity(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "", "practice", "juggling", "--style", "notty"); err == nil {
		t.Fatal("expected error for unknown activity")
	}
}

// TestExportImportRoundTrip verifies snapshot export and import through files.
func TestExportImportRoundTrip(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, `{"user_id":"u1","history":{"goals":["sleep"]}}`, "profile", "set"); err != nil {
		t.Fatalf("profile set error = %v", err)
	}
	outPath := filepath.Join(env.dir, "exports", "snap.json")
	if err := env.run(t, "", "export", "--user", "u1", "--out", outPath); err != nil {
		t.Fatalf("export error = %v", err)
	}
	snap, err := readSnapshot(outPath)
	if err != nil {
		t.Fatalf("readSnapshot() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion || len(snap.Profiles) != 1 || len(snap.Activities) == 0 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	env.db = filepath.Join(env.dir, "second.db")
	if err := env.run(t, "", "import", "--in", outPath); err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), "imported 1 profiles") {
		t.Fatalf("unexpected import output %q", env.stdout.String())
	}
	if err := env.run(t, "", "profile", "show", "--user", "u1"); err != nil {
		t.Fatalf("profile show error = %v", err)
	}
	if !strings.Contains(env.stdout.String(), "sleep") {
		t.Fatalf("expected imported goals, got %q", env.stdout.String())
	}

	if err := env.run(t, "", "import"); err == nil {
		t.Fatal("expected --in required error")
	}
}

// TestConfigAndDBEnvOverrides verifies env path overrides.
func TestConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	if err := os.WriteFile(cfgPath, []byte("[database]\npath = \"/tmp/ignore-me.db\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("MANAS_CONFIG", cfgPath)
	t.Setenv("MANAS_DB_PATH", dbPath)

	root := newRootCommand(strings.NewReader(""), io.Discard, io.Discard)
	root.SetArgs([]string{"history", "--user", "u1"})
	if err := root.Execute(); err != nil {
		t.Fatalf("history with env paths error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

// TestRejectsInvalidLoggingLevel verifies config validation errors surface.
func TestRejectsInvalidLoggingLevel(t *testing.T) {
	env := newCLIEnv(t)
	if err := os.WriteFile(env.cfg, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := env.run(t, "", "catalog")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config load error, got %v", err)
	}
}

// TestDevModeCreatesWorkspaceLogFile verifies the dev-file sink lands in the workspace.
func TestDevModeCreatesWorkspaceLogFile(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "", "--dev", "catalog"); err != nil {
		t.Fatalf("catalog error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(env.dir, ".manas", "log"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	found := false
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a .log file, got %v", entries)
	}
}

// TestLoadDotEnv verifies missing files are skipped and present ones loaded.
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MANAS_DOTENV_TEST=loaded\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("MANAS_DOTENV_TEST", "")
	_ = os.Unsetenv("MANAS_DOTENV_TEST")

	loaded, err := loadDotEnv(filepath.Join(dir, "missing.env"), path, "")
	if err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0] != path {
		t.Fatalf("unexpected loaded files %v", loaded)
	}
	if got := os.Getenv("MANAS_DOTENV_TEST"); got != "loaded" {
		t.Fatalf("expected env loaded, got %q", got)
	}
}

// TestServiceConfigAppliesTuningOverrides verifies zero values keep stock tuning.
func TestServiceConfigAppliesTuningOverrides(t *testing.T) {
	cfg := config.Default("/tmp/manas.db")
	cfg.Tuning.Difficulty.IncreaseScale = 1.5
	cfg.Tuning.Recommendation.Limit = 7

	got := serviceConfig(cfg, app.DefaultCatalog(), nil, nil)
	if got.Difficulty.IncreaseScale != 1.5 {
		t.Fatalf("expected increase scale override, got %v", got.Difficulty.IncreaseScale)
	}
	if got.Difficulty.DecreaseScale != app.DefaultDifficultyTuning().DecreaseScale {
		t.Fatalf("expected stock decrease scale, got %v", got.Difficulty.DecreaseScale)
	}
	if got.Recommendation.Limit != 7 {
		t.Fatalf("expected limit override, got %d", got.Recommendation.Limit)
	}
	if got.Sessions.IdleTimeout != 30*time.Minute {
		t.Fatalf("expected idle timeout from config, got %v", got.Sessions.IdleTimeout)
	}
}

// TestNewNarratorRequiresKeyForGemini verifies provider wiring.
func TestNewNarratorRequiresKeyForGemini(t *testing.T) {
	logger, _ := newRuntimeLogger(io.Discard, "manas", false, config.Default("").Logging, nil)
	cfg := config.Default("").Textgen
	narrator, err := newNarrator(cfg, logger)
	if err != nil || narrator != nil {
		t.Fatalf("expected nil narrator for provider none, got %v, %v", narrator, err)
	}

	t.Setenv(geminiAPIKeyEnv, "")
	cfg.Provider = config.TextgenGemini
	if _, err := newNarrator(cfg, logger); err == nil {
		t.Fatal("expected missing api key error")
	}
	t.Setenv(geminiAPIKeyEnv, "test-key")
	if narrator, err := newNarrator(cfg, logger); err != nil || narrator == nil {
		t.Fatalf("expected gemini narrator, got %v, %v", narrator, err)
	}
}

// TestIdleSweeperRejectsBadSchedule verifies cron parsing errors surface.
func TestIdleSweeperRejectsBadSchedule(t *testing.T) {
	sweep := func(context.Context) (int, error) { return 0, nil }
	if _, err := newIdleSweeper(context.Background(), "", sweep, nil); err == nil {
		t.Fatal("expected empty schedule error")
	}
	if _, err := newIdleSweeper(context.Background(), "every tuesday", sweep, nil); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	s, err := newIdleSweeper(context.Background(), "@every 1h", sweep, nil)
	if err != nil {
		t.Fatalf("newIdleSweeper() error = %v", err)
	}
	s.Start()
	s.Stop()
}

// TestIdleSweeperRunLogs verifies one sweep reports through the logger.
func TestIdleSweeperRunLogs(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "manas", false, config.Default("").Logging, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	s, err := newIdleSweeper(context.Background(), "@every 1h", func(context.Context) (int, error) {
		return 2, errors.New("disk full")
	}, logger)
	if err != nil {
		t.Fatalf("newIdleSweeper() error = %v", err)
	}
	s.run(context.Background())
	if !strings.Contains(console.String(), "disk full") {
		t.Fatalf("expected sweep error logged, got %q", console.String())
	}
}

// TestRuntimeLoggerCanMuteConsoleSink verifies console toggling.
func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "manas", false, config.Default("/tmp/manas.db").Logging, func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") || strings.Contains(out, "during") || !strings.Contains(out, "after") {
		t.Fatalf("unexpected console output %q", out)
	}
}

// TestWorkspaceRootFromUsesNearestMarker verifies marker discovery.
func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
}

// TestSanitizeLogFileStem verifies file-name normalization.
func TestSanitizeLogFileStem(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "manas", want: "manas"},
		{in: " my app ", want: "my-app"},
		{in: "a/b\\c:d", want: "a-b-c-d"},
		{in: "   ", want: "manas"},
		{in: "/leading/", want: "leading"},
	}
	for _, tc := range cases {
		if got := sanitizeLogFileStem(tc.in); got != tc.want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestProgressBar verifies clamping and fill.
func TestProgressBar(t *testing.T) {
	if got := progressBar(50, 10); got != "[#####.....]  50%" {
		t.Fatalf("progressBar(50) = %q", got)
	}
	if got := progressBar(150, 4); got != "[####] 100%" {
		t.Fatalf("progressBar(150) = %q", got)
	}
	if got := progressBar(-5, 4); got != "[....]   0%" {
		t.Fatalf("progressBar(-5) = %q", got)
	}
}

// TestMarkdownRendererFallsBackOnEmpty verifies blank content renders empty.
func TestMarkdownRendererFallsBackOnEmpty(t *testing.T) {
	r := newMarkdownRenderer("notty", 60)
	if got := r.render("   "); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
	if got := r.render("**breathe** in"); !strings.Contains(got, "breathe") {
		t.Fatalf("expected rendered text, got %q", got)
	}
}
