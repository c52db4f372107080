package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hylla/manas/internal/adapters/server"
	"github.com/hylla/manas/internal/adapters/server/common"
	"github.com/hylla/manas/internal/domain"
	"github.com/spf13/cobra"
)

// newPathsCommand prints resolved runtime paths without opening storage.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "env: %s\n", paths.EnvPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "exports: %s\n", paths.ExportDir)
			return nil
		},
	}
}

// newServeCommand runs the HTTP and MCP transports with the idle sweeper.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "serve", func(env *runtimeEnv) error {
				ctx := cmd.Context()
				sweeper, err := newIdleSweeper(ctx, env.cfg.Sessions.SweepSchedule, env.svc.SweepIdleSessions, env.logger)
				if err != nil {
					return err
				}
				sweeper.Start()
				defer sweeper.Stop()

				if strings.TrimSpace(bind) == "" {
					bind = env.cfg.Server.Bind
				}
				adapter := common.NewAppServiceAdapter(env.svc)
				return server.Run(ctx, server.Config{
					HTTPBind:      bind,
					APIEndpoint:   env.cfg.Server.APIEndpoint,
					MCPEndpoint:   env.cfg.Server.MCPEndpoint,
					ServerName:    opts.appName,
					ServerVersion: version,
					Logger:        env.logger.Console(),
				}, server.Dependencies{
					Sessions: adapter,
					Recs:     adapter,
					Profiles: adapter,
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (defaults to [server] bind)")
	return cmd
}

// newCatalogCommand lists catalog entries.
func newCatalogCommand(opts *rootOptions) *cobra.Command {
	var (
		category string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List available activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if category != "" && !domain.IsValidCategory(domain.ActivityCategory(category)) {
				return fmt.Errorf("unknown category %q", category)
			}
			return withRuntime(cmd, opts, "catalog", func(env *runtimeEnv) error {
				entries := env.svc.ListActivities(domain.ActivityCategory(category))
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, entries)
				}
				st := newStyles(true)
				for _, meta := range entries {
					_, _ = fmt.Fprintf(out, "%s  %s  [%s] %d-%d min %s\n",
						st.title.Render(string(meta.Type)),
						meta.DisplayName,
						meta.Category,
						meta.MinDuration(),
						meta.MaxDuration(),
						st.hint.Render(string(meta.MinDifficulty())+".."+string(meta.MaxDifficulty())),
					)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

// newExportCommand writes a snapshot of the catalog and selected profiles.
func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		outPath string
		users   []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog and user profiles as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "export", func(env *runtimeEnv) error {
				snap, err := env.svc.ExportSnapshot(cmd.Context(), users)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				encoded, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot json: %w", err)
				}
				encoded = append(encoded, '\n')
				if outPath == "-" {
					_, err := cmd.OutOrStdout().Write(encoded)
					return err
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringSliceVar(&users, "user", nil, "user ids whose profiles are included")
	return cmd
}

// newImportCommand stores profiles from a snapshot.
func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import user profiles from a JSON snapshot",
		Long:  "import stores snapshot profiles. Activity overrides apply to this run only; set [catalog] import_path to load them on every start.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			return withRuntime(cmd, opts, "import", func(env *runtimeEnv) error {
				snap, err := readSnapshot(inPath)
				if err != nil {
					return err
				}
				if err := env.svc.ImportSnapshot(cmd.Context(), snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d profiles and %d activities\n", len(snap.Profiles), len(snap.Activities))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// newRecommendCommand ranks activities for one user.
func newRecommendCommand(opts *rootOptions) *cobra.Command {
	var (
		criteria domain.RecommendationCriteria
		urgency  string
		mode     string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend activities for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "recommend", func(env *runtimeEnv) error {
				ctx := cmd.Context()
				criteria.Urgency = domain.Urgency(urgency)
				var (
					recs []domain.ActivityRecommendation
					err  error
				)
				switch strings.TrimSpace(strings.ToLower(mode)) {
				case "", "ranked":
					recs, err = env.svc.Recommend(ctx, criteria)
				case "crisis":
					recs, err = env.svc.CrisisSupport(ctx, criteria.User)
				case "quick":
					recs, err = env.svc.QuickRelief(ctx, criteria.User)
				default:
					return fmt.Errorf("unknown mode %q", mode)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, recs)
				}
				if len(recs) == 0 {
					_, _ = fmt.Fprintln(out, "no eligible activities")
					return nil
				}
				for i, rec := range recs {
					_, _ = fmt.Fprintf(out, "%d. %s (%s, %d min, %s) priority %.2f [%s]\n   %s\n",
						i+1, rec.DisplayName, rec.Type, rec.DurationMinutes, rec.Difficulty, rec.Priority, rec.Urgency, rec.Rationale)
				}
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&criteria.User.UserID, "user", "", "user id whose stored profile is used")
	flags.StringVar(&criteria.EmotionalState, "emotion", "", "current emotional state")
	flags.StringVar(&urgency, "urgency", "", "low, medium, high, or immediate")
	flags.IntVar(&criteria.AvailableMinutes, "minutes", 0, "available minutes")
	flags.StringSliceVar(&criteria.SpecificNeeds, "need", nil, "specific needs")
	flags.IntVar(&criteria.Limit, "limit", 0, "maximum recommendations")
	flags.StringVar(&mode, "mode", "ranked", "ranked, crisis, or quick")
	flags.BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

// newHistoryCommand lists persisted sessions for one user.
func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		userID string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past sessions for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "history", func(env *runtimeEnv) error {
				if limit <= 0 {
					limit = env.cfg.Sessions.HistoryLimit
				}
				sessions, err := env.svc.ListSessionHistory(cmd.Context(), userID, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, sessions)
				}
				for _, s := range sessions {
					_, _ = fmt.Fprintf(out, "%s  %-20s %-20s %5.1f%%  engagement %.1f  %s\n",
						s.StartedAt.Local().Format("2006-01-02 15:04"), s.Type, s.Status, s.CompletionPercentage, s.EngagementScore, s.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions (defaults to [sessions] history_limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

// newProfileCommand reads and writes stored user profiles.
func newProfileCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or store a user profile",
	}
	var userID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a stored profile as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "profile show", func(env *runtimeEnv) error {
				user, err := env.svc.GetUserContext(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), user)
			})
		},
	}
	show.Flags().StringVar(&userID, "user", "", "user id")

	var inPath string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store a profile from a JSON file ('-' reads stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var user domain.UserContext
			if err := decodeJSONInput(cmd.InOrStdin(), inPath, &user); err != nil {
				return err
			}
			return withRuntime(cmd, opts, "profile set", func(env *runtimeEnv) error {
				saved, err := env.svc.SaveUserContext(cmd.Context(), user)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved profile %s\n", saved.UserID)
				return nil
			})
		},
	}
	set.Flags().StringVar(&inPath, "in", "-", "profile JSON file")

	cmd.AddCommand(show, set)
	return cmd
}

// decodeJSONInput reads one JSON document from a file or stdin.
func decodeJSONInput(stdin io.Reader, path string, dst any) error {
	var r io.Reader = stdin
	if path = strings.TrimSpace(path); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	if r == nil {
		return fmt.Errorf("no input provided")
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode input json: %w", err)
	}
	return nil
}

// writeJSON writes one indented JSON document.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
