// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/manas/internal/adapters/server/common"
	"github.com/hylla/manas/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter with session, catalog, and optional profile tools.
func NewHandler(
	cfg Config,
	sessions common.SessionService,
	recs common.RecommendationService,
	profiles common.ProfileService,
) (*Handler, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if recs == nil {
		return nil, fmt.Errorf("recommendation service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerSessionTools(mcpSrv, sessions)
	registerCatalogTools(mcpSrv, recs)
	if profiles != nil {
		registerProfileTools(mcpSrv, profiles)
	}

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "manas"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// boundTool adapts one request-typed service call into an MCP tool handler.
func boundTool[Req any, Resp any](
	name string,
	call func(context.Context, Req) (Resp, error),
	wrap func(Resp) any,
) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in Req
		if err := req.BindArguments(&in); err != nil {
			return invalidRequestToolResult(err), nil
		}
		out, err := call(ctx, in)
		if err != nil {
			return toolResultFromError(err), nil
		}
		var payload any = out
		if wrap != nil {
			payload = wrap(out)
		}
		result, err := mcp.NewToolResultJSON(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return result, nil
	}
}

// registerSessionTools registers the session lifecycle tools.
func registerSessionTools(srv *mcpserver.MCPServer, sessions common.SessionService) {
	srv.AddTool(
		mcp.NewTool(
			"manas.start_session",
			mcp.WithDescription("Start one therapeutic activity session for a user."),
			mcp.WithString("type", mcp.Required(), mcp.Description("Registered activity type, e.g. breathing_exercise")),
			mcp.WithString("user_id", mcp.Description("User identifier; the stored profile is loaded when available")),
			mcp.WithObject("user", mcp.Description("Optional inline user context")),
			mcp.WithString("difficulty", mcp.Description("Difficulty override"), mcp.Enum("beginner", "intermediate", "advanced")),
			mcp.WithNumber("duration_minutes", mcp.Description("Duration override in minutes")),
			mcp.WithArray("cultural_adaptations", mcp.Description("Additional cultural adaptation tags"), mcp.WithStringItems()),
		),
		boundTool("start_session", sessions.StartSession, nil),
	)

	srv.AddTool(
		mcp.NewTool(
			"manas.process_input",
			mcp.WithDescription("Submit one user turn to a live session and return the next response."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
			mcp.WithString("input", mcp.Required(), mcp.Description("User message text")),
		),
		boundTool("process_input", sessions.ProcessInput, nil),
	)

	for _, op := range []struct {
		name        string
		description string
		call        func(context.Context, common.SessionRequest) (domain.ActivitySession, error)
	}{
		{name: "get_session", description: "Return one live session snapshot.", call: sessions.GetSession},
		{name: "pause_session", description: "Pause one active session.", call: sessions.PauseSession},
		{name: "resume_session", description: "Resume one paused session.", call: sessions.ResumeSession},
		{name: "abandon_session", description: "Abandon one live session without completing it.", call: sessions.AbandonSession},
	} {
		srv.AddTool(
			mcp.NewTool(
				"manas."+op.name,
				mcp.WithDescription(op.description),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
			),
			boundTool(op.name, op.call, nil),
		)
	}

	srv.AddTool(
		mcp.NewTool(
			"manas.complete_session",
			mcp.WithDescription("Complete one live session and return its summary, insights, and follow-ups."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		),
		boundTool("complete_session", sessions.CompleteSession, nil),
	)

	triggers := make([]string, 0, 8)
	for _, trigger := range domain.AdaptationTriggers() {
		triggers = append(triggers, string(trigger))
	}
	srv.AddTool(
		mcp.NewTool(
			"manas.request_adaptation",
			mcp.WithDescription("Ask a live session to adapt its difficulty, pacing, or content."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
			mcp.WithString("trigger", mcp.Required(), mcp.Description("Adaptation trigger"), mcp.Enum(triggers...)),
			mcp.WithString("details", mcp.Description("Optional free-text details")),
		),
		boundTool("request_adaptation", sessions.RequestAdaptation, nil),
	)

	srv.AddTool(
		mcp.NewTool(
			"manas.record_engagement",
			mcp.WithDescription("Record one externally measured engagement sample for a live session."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
			mcp.WithNumber("response_time_seconds", mcp.Description("Seconds the user took to respond")),
			mcp.WithNumber("message_length", mcp.Description("Length of the user message")),
			mcp.WithNumber("emotional_expression", mcp.Description("Emotional expression score in [0,1]")),
			mcp.WithNumber("question_asking", mcp.Description("Question asking score in [0,1]")),
			mcp.WithNumber("follow_through", mcp.Description("Follow-through score in [0,1]")),
			mcp.WithNumber("overall", mcp.Description("Overall engagement score in [0,1]")),
		),
		boundTool(
			"record_engagement",
			func(ctx context.Context, in common.EngagementRequest) (string, error) {
				return in.SessionID, sessions.RecordEngagement(ctx, in)
			},
			func(sessionID string) any {
				return map[string]any{"session_id": sessionID, "recorded": true}
			},
		),
	)

	srv.AddTool(
		mcp.NewTool(
			"manas.list_active_sessions",
			mcp.WithDescription("List live sessions for one user."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
		),
		boundTool("list_active_sessions", sessions.ListActiveSessions, func(rows []domain.ActivitySession) any {
			return map[string]any{"sessions": rows}
		}),
	)
}

// registerCatalogTools registers recommendation and catalog tools.
func registerCatalogTools(srv *mcpserver.MCPServer, recs common.RecommendationService) {
	categories := make([]string, 0, 5)
	for _, category := range domain.Categories() {
		categories = append(categories, string(category))
	}

	srv.AddTool(
		mcp.NewTool(
			"manas.recommend",
			mcp.WithDescription("Rank activities for one user. Mode crisis returns immediate support only."),
			mcp.WithString("user_id", mcp.Description("User identifier")),
			mcp.WithObject("user", mcp.Description("Optional inline user context")),
			mcp.WithString("mode", mcp.Description("Recommendation mode"), mcp.Enum(common.SupportedRecommendModes()...)),
			mcp.WithString("emotional_state", mcp.Description("Current emotional state label")),
			mcp.WithString("urgency", mcp.Description("Urgency"), mcp.Enum("low", "medium", "high", "immediate")),
			mcp.WithNumber("available_minutes", mcp.Description("Time budget in minutes")),
			mcp.WithArray("specific_needs", mcp.Description("Needs to match against activity tags"), mcp.WithStringItems()),
			mcp.WithNumber("limit", mcp.Description("Maximum recommendations to return")),
		),
		boundTool("recommend", recs.Recommend, func(rows []domain.ActivityRecommendation) any {
			return map[string]any{"recommendations": rows}
		}),
	)

	srv.AddTool(
		mcp.NewTool(
			"manas.list_activities",
			mcp.WithDescription("List registered activities, optionally filtered by category."),
			mcp.WithString("category", mcp.Description("Category filter"), mcp.Enum(categories...)),
		),
		boundTool("list_activities", recs.ListActivities, func(rows []domain.ActivityMetadata) any {
			return map[string]any{"activities": rows}
		}),
	)
}

// registerProfileTools registers optional profile and history tools.
func registerProfileTools(srv *mcpserver.MCPServer, profiles common.ProfileService) {
	srv.AddTool(
		mcp.NewTool(
			"manas.get_profile",
			mcp.WithDescription("Return one stored user profile."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
		),
		boundTool("get_profile", profiles.GetProfile, nil),
	)

	srv.AddTool(
		mcp.NewTool(
			"manas.save_profile",
			mcp.WithDescription("Create or replace one stored user profile."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
			mcp.WithObject("profile", mcp.Required(), mcp.Description("User context object")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				UserID  string             `json:"user_id"`
				Profile domain.UserContext `json:"profile"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			userID := strings.TrimSpace(args.UserID)
			if userID == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "user_id" not found`), nil
			}
			if id := strings.TrimSpace(args.Profile.UserID); id != "" && id != userID {
				return mcp.NewToolResultError("invalid_request: profile user_id does not match user_id"), nil
			}
			args.Profile.UserID = userID
			saved, err := profiles.SaveProfile(ctx, args.Profile)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(saved)
			if err != nil {
				return nil, fmt.Errorf("encode save_profile result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"manas.list_history",
			mcp.WithDescription("List persisted sessions for one user, newest first."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		boundTool("list_history", profiles.ListHistory, func(rows []domain.ActivitySession) any {
			return map[string]any{"sessions": rows}
		}),
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrIneligible):
		return mcp.NewToolResultError("ineligible: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult reports malformed tool arguments.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
