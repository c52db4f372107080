package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/domain"
	"github.com/spf13/cobra"
)

// practiceOptions holds flags for one interactive session.
type practiceOptions struct {
	userID     string
	difficulty string
	minutes    int
	style      string
	width      int
	verbose    bool
}

// newPracticeCommand runs one activity interactively on the terminal.
func newPracticeCommand(opts *rootOptions) *cobra.Command {
	var p practiceOptions
	cmd := &cobra.Command{
		Use:   "practice TYPE",
		Short: "Run an activity interactively",
		Long: "practice starts one activity and reads replies line by line.\n" +
			"Commands: /pause, /resume, /done to finish early, /quit to abandon.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, "practice", func(env *runtimeEnv) error {
				if !p.verbose {
					env.logger.SetConsoleEnabled(false)
				}
				return runPractice(cmd.Context(), env.svc, domain.ActivityType(args[0]), p, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&p.userID, "user", "local", "user id")
	flags.StringVar(&p.difficulty, "difficulty", "", "beginner, intermediate, or advanced")
	flags.IntVar(&p.minutes, "minutes", 0, "preferred duration in minutes")
	flags.StringVar(&p.style, "style", "auto", "markdown style (auto, dark, light, notty)")
	flags.IntVar(&p.width, "width", 80, "wrap width")
	flags.BoolVar(&p.verbose, "verbose", false, "keep runtime logs on the console")
	return cmd
}

// practiceSession is the engine surface the interactive loop drives.
type practiceSession interface {
	StartSession(context.Context, app.StartSessionInput) (app.ActivityResponse, error)
	ProcessInput(context.Context, string, string) (app.ActivityResponse, error)
	PauseSession(context.Context, string) (domain.ActivitySession, error)
	ResumeSession(context.Context, string) (domain.ActivitySession, error)
	AbandonSession(context.Context, string) (domain.ActivitySession, error)
	CompleteSession(context.Context, string) (app.SessionResult, error)
}

// runPractice drives one session from stdin until it completes or ends.
func runPractice(ctx context.Context, svc practiceSession, activityType domain.ActivityType, p practiceOptions, in io.Reader, out io.Writer) error {
	st := newStyles(p.style == "notty")
	md := newMarkdownRenderer(p.style, p.width)

	resp, err := svc.StartSession(ctx, app.StartSessionInput{
		Type:   activityType,
		UserID: p.userID,
		Overrides: app.ConfigurationOverrides{
			Difficulty:      domain.DifficultyLevel(p.difficulty),
			DurationMinutes: p.minutes,
		},
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	sessionID := resp.SessionID
	_, _ = fmt.Fprintln(out, st.hint.Render("session "+sessionID+"  (/pause /resume /done /quit)"))
	printTurn(out, st, md, resp)

	scanner := bufio.NewScanner(in)
	for {
		if resp.CompletionPercentage >= 100 {
			return finishPractice(ctx, svc, sessionID, st, md, out)
		}
		_, _ = fmt.Fprint(out, st.section.Render("> "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			// Input closed before the last step.
			return finishPractice(ctx, svc, sessionID, st, md, out)
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "/pause":
			if _, err := svc.PauseSession(ctx, sessionID); err != nil {
				_, _ = fmt.Fprintln(out, st.alert.Render(err.Error()))
				continue
			}
			_, _ = fmt.Fprintln(out, st.status.Render("paused; type /resume to continue"))
			continue
		case "/resume":
			if _, err := svc.ResumeSession(ctx, sessionID); err != nil {
				_, _ = fmt.Fprintln(out, st.alert.Render(err.Error()))
				continue
			}
			_, _ = fmt.Fprintln(out, st.status.Render("resumed"))
			continue
		case "/done":
			return finishPractice(ctx, svc, sessionID, st, md, out)
		case "/quit":
			session, err := svc.AbandonSession(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("abandon session: %w", err)
			}
			_, _ = fmt.Fprintln(out, st.status.Render(fmt.Sprintf("session %s, %.0f%% complete", session.Status, session.CompletionPercentage)))
			return nil
		}

		next, err := svc.ProcessInput(ctx, sessionID, line)
		if err != nil {
			_, _ = fmt.Fprintln(out, st.alert.Render(err.Error()))
			continue
		}
		resp = next
		printTurn(out, st, md, resp)
	}
}

// printTurn renders one response with its progress line.
func printTurn(out io.Writer, st styles, md *markdownRenderer, resp app.ActivityResponse) {
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, md.render(resp.Content))
	status := fmt.Sprintf("step %d/%d %s", resp.Step, resp.TotalSteps, progressBar(resp.CompletionPercentage, 20))
	if resp.AdaptationTriggered {
		status += "  adapted"
	}
	_, _ = fmt.Fprintln(out, st.status.Render(status))
	if resp.NextStepPreview != "" {
		_, _ = fmt.Fprintln(out, st.hint.Render("next: "+resp.NextStepPreview))
	}
}

// finishPractice completes the session and prints its summary.
func finishPractice(ctx context.Context, svc practiceSession, sessionID string, st styles, md *markdownRenderer, out io.Writer) error {
	result, err := svc.CompleteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	var b strings.Builder
	b.WriteString("## Session summary\n\n")
	b.WriteString(result.Summary)
	b.WriteString("\n")
	if len(result.Insights) > 0 {
		b.WriteString("\n### Insights\n\n")
		for _, insight := range result.Insights {
			b.WriteString("- " + insight + "\n")
		}
	}
	if len(result.SkillsDemonstrated) > 0 {
		b.WriteString("\n### Skills practiced\n\n")
		for _, skill := range result.SkillsDemonstrated {
			b.WriteString("- " + skill + "\n")
		}
	}
	if len(result.FollowUps) > 0 {
		b.WriteString("\n### Try next\n\n")
		for _, rec := range result.FollowUps {
			fmt.Fprintf(&b, "- **%s** (%d min): %s\n", rec.DisplayName, rec.DurationMinutes, rec.Rationale)
		}
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, md.render(b.String()))
	_, _ = fmt.Fprintln(out, st.status.Render(fmt.Sprintf("%s  %s  engagement %.1f/10",
		result.Session.Status, progressBar(result.Completion, 20), result.EngagementScore)))
	return nil
}
