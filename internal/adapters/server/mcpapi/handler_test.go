package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/hylla/manas/internal/adapters/server/common"
	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubProfileService provides deterministic profile responses for MCP tool tests.
type stubProfileService struct {
	users    map[string]domain.UserContext
	saveErr  error
	lastSave domain.UserContext
}

// GetProfile returns one fixture profile.
func (s *stubProfileService) GetProfile(_ context.Context, req common.ProfileRequest) (domain.UserContext, error) {
	user, ok := s.users[req.UserID]
	if !ok {
		return domain.UserContext{}, common.ErrNotFound
	}
	return user, nil
}

// SaveProfile records the latest save request.
func (s *stubProfileService) SaveProfile(_ context.Context, user domain.UserContext) (domain.UserContext, error) {
	s.lastSave = user
	if s.saveErr != nil {
		return domain.UserContext{}, s.saveErr
	}
	s.users[user.UserID] = user
	return user, nil
}

// ListHistory returns no rows.
func (s *stubProfileService) ListHistory(context.Context, common.HistoryRequest) ([]domain.ActivitySession, error) {
	return []domain.ActivitySession{}, nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "manas-test",
				"version": "1.0.0",
			},
		},
	}
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()
	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	if isError, _ := result["isError"].(bool); isError {
		t.Fatalf("tool returned isError=true: %#v", result)
	}
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// newTestServer starts one MCP server over a real engine without persistence.
func newTestServer(t *testing.T, profiles common.ProfileService) *httptest.Server {
	t.Helper()
	adapter := common.NewAppServiceAdapter(app.NewService(nil, nil, nil, nil, app.ServiceConfig{}))
	handler, err := NewHandler(Config{}, adapter, adapter, profiles)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// listToolNames returns registered tool names from tools/list.
func listToolNames(t *testing.T, server *httptest.Server) []string {
	t.Helper()
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	names := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		names = append(names, name)
	}
	return names
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	adapter := common.NewAppServiceAdapter(app.NewService(nil, nil, nil, nil, app.ServiceConfig{}))
	handler, err := NewHandler(Config{}, adapter, adapter, nil)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestNewHandlerRequiresServices verifies constructor dependency checks.
func TestNewHandlerRequiresServices(t *testing.T) {
	adapter := common.NewAppServiceAdapter(app.NewService(nil, nil, nil, nil, app.ServiceConfig{}))
	if _, err := NewHandler(Config{}, nil, adapter, nil); err == nil {
		t.Fatal("expected error without session service")
	}
	if _, err := NewHandler(Config{}, adapter, nil, nil); err == nil {
		t.Fatal("expected error without recommendation service")
	}
}

// TestHandlerRegistersTools verifies tool discovery and optional profile tools.
func TestHandlerRegistersTools(t *testing.T) {
	names := listToolNames(t, newTestServer(t, nil))
	for _, required := range []string{
		"manas.start_session",
		"manas.process_input",
		"manas.get_session",
		"manas.pause_session",
		"manas.resume_session",
		"manas.abandon_session",
		"manas.complete_session",
		"manas.request_adaptation",
		"manas.record_engagement",
		"manas.list_active_sessions",
		"manas.recommend",
		"manas.list_activities",
	} {
		if !slices.Contains(names, required) {
			t.Fatalf("tool list missing %q: %#v", required, names)
		}
	}
	if slices.Contains(names, "manas.get_profile") {
		t.Fatalf("unexpected profile tool without profile service: %#v", names)
	}

	names = listToolNames(t, newTestServer(t, &stubProfileService{users: map[string]domain.UserContext{}}))
	for _, required := range []string{"manas.get_profile", "manas.save_profile", "manas.list_history"} {
		if !slices.Contains(names, required) {
			t.Fatalf("tool list missing %q: %#v", required, names)
		}
	}
}

// TestHandlerSessionToolFlow verifies the session lifecycle over tool calls.
func TestHandlerSessionToolFlow(t *testing.T) {
	server := newTestServer(t, nil)
	client := server.Client()

	_, startResp := postJSONRPC(t, client, server.URL, callToolRequest(3, "manas.start_session", map[string]any{
		"type":    "breathing_exercise",
		"user_id": "u1",
	}))
	started := toolResultStructured(t, startResp.Result)
	sessionID, _ := started["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("session_id missing: %#v", started)
	}
	if step, _ := started["step"].(float64); step != 1 {
		t.Fatalf("step = %v, want 1", started["step"])
	}

	_, inputResp := postJSONRPC(t, client, server.URL, callToolRequest(4, "manas.process_input", map[string]any{
		"session_id": sessionID,
		"input":      "breathing in slowly",
	}))
	if step, _ := toolResultStructured(t, inputResp.Result)["step"].(float64); step != 2 {
		t.Fatalf("step after input = %v, want 2", step)
	}

	_, engagementResp := postJSONRPC(t, client, server.URL, callToolRequest(5, "manas.record_engagement", map[string]any{
		"session_id":     sessionID,
		"follow_through": 0.7,
	}))
	if recorded, _ := toolResultStructured(t, engagementResp.Result)["recorded"].(bool); !recorded {
		t.Fatalf("record_engagement result = %#v", engagementResp.Result)
	}

	_, adaptResp := postJSONRPC(t, client, server.URL, callToolRequest(6, "manas.request_adaptation", map[string]any{
		"session_id": sessionID,
		"trigger":    "time_constraint",
	}))
	if trigger, _ := toolResultStructured(t, adaptResp.Result)["trigger"].(string); trigger != "time_constraint" {
		t.Fatalf("adaptation trigger = %q", trigger)
	}

	_, activeResp := postJSONRPC(t, client, server.URL, callToolRequest(7, "manas.list_active_sessions", map[string]any{
		"user_id": "u1",
	}))
	if rows, _ := toolResultStructured(t, activeResp.Result)["sessions"].([]any); len(rows) != 1 {
		t.Fatalf("active sessions = %#v, want one row", rows)
	}

	_, completeResp := postJSONRPC(t, client, server.URL, callToolRequest(8, "manas.complete_session", map[string]any{
		"session_id": sessionID,
	}))
	completed := toolResultStructured(t, completeResp.Result)
	if _, ok := completed["summary"]; !ok {
		t.Fatalf("complete_session result missing summary: %#v", completed)
	}

	_, getResp := postJSONRPC(t, client, server.URL, callToolRequest(9, "manas.get_session", map[string]any{
		"session_id": sessionID,
	}))
	if got := toolResultText(t, getResp.Result); !strings.HasPrefix(got, "not_found:") {
		t.Fatalf("error text = %q, want prefix not_found:", got)
	}
}

// TestHandlerToolErrors verifies error prefixes for each failure class.
func TestHandlerToolErrors(t *testing.T) {
	server := newTestServer(t, nil)
	tests := []struct {
		name   string
		tool   string
		args   map[string]any
		prefix string
	}{
		{name: "bind failure", tool: "manas.start_session", args: map[string]any{"type": 123}, prefix: "invalid_request:"},
		{name: "validation", tool: "manas.process_input", args: map[string]any{"session_id": "s1"}, prefix: "invalid_request:"},
		{name: "unregistered", tool: "manas.start_session", args: map[string]any{"type": "juggling", "user_id": "u1"}, prefix: "not_found:"},
		{name: "ineligible", tool: "manas.start_session", args: map[string]any{"type": "thought_challenge", "user_id": "u1"}, prefix: "ineligible:"},
		{name: "bad mode", tool: "manas.recommend", args: map[string]any{"user_id": "u1", "mode": "panic"}, prefix: "invalid_request:"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(100+i, tt.tool, tt.args))
			if isError, _ := resp.Result["isError"].(bool); !isError {
				t.Fatalf("isError = %v, want true", resp.Result["isError"])
			}
			if got := toolResultText(t, resp.Result); !strings.HasPrefix(got, tt.prefix) {
				t.Fatalf("error text = %q, want prefix %s", got, tt.prefix)
			}
		})
	}
}

// TestHandlerCatalogTools verifies recommendation and catalog listings.
func TestHandlerCatalogTools(t *testing.T) {
	server := newTestServer(t, nil)

	_, listResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "manas.list_activities", map[string]any{
		"category": "mindfulness",
	}))
	if rows, _ := toolResultStructured(t, listResp.Result)["activities"].([]any); len(rows) != 4 {
		t.Fatalf("mindfulness activities = %d, want 4", len(rows))
	}

	_, recResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "manas.recommend", map[string]any{
		"user_id": "u1",
		"mode":    "crisis",
	}))
	rows, _ := toolResultStructured(t, recResp.Result)["recommendations"].([]any)
	if len(rows) == 0 {
		t.Fatal("expected crisis recommendations")
	}
	for _, raw := range rows {
		row, _ := raw.(map[string]any)
		if row["category"] != "crisis" {
			t.Fatalf("expected crisis category, got %#v", row)
		}
	}
}

// TestHandlerProfileTools verifies save and get profile wiring.
func TestHandlerProfileTools(t *testing.T) {
	profiles := &stubProfileService{users: map[string]domain.UserContext{}}
	server := newTestServer(t, profiles)

	_, saveResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "manas.save_profile", map[string]any{
		"user_id": "u9",
		"profile": map[string]any{"current_state": map[string]any{"stress_level": 4}},
	}))
	_ = toolResultStructured(t, saveResp.Result)
	if profiles.lastSave.UserID != "u9" || profiles.lastSave.CurrentState.StressLevel != 4 {
		t.Fatalf("unexpected saved profile %#v", profiles.lastSave)
	}

	_, mismatchResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "manas.save_profile", map[string]any{
		"user_id": "u9",
		"profile": map[string]any{"user_id": "other"},
	}))
	if got := toolResultText(t, mismatchResp.Result); !strings.HasPrefix(got, "invalid_request:") {
		t.Fatalf("error text = %q, want invalid_request prefix", got)
	}

	_, getResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "manas.get_profile", map[string]any{
		"user_id": "u9",
	}))
	if got, _ := toolResultStructured(t, getResp.Result)["user_id"].(string); got != "u9" {
		t.Fatalf("user_id = %q, want u9", got)
	}

	profiles.saveErr = errors.Join(common.ErrUnavailable, errors.New("store offline"))
	_, failResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(6, "manas.save_profile", map[string]any{
		"user_id": "u9",
		"profile": map[string]any{},
	}))
	if got := toolResultText(t, failResp.Result); !strings.HasPrefix(got, "unavailable:") {
		t.Fatalf("error text = %q, want unavailable prefix", got)
	}
}

// TestToolResultFromError verifies error classification order.
func TestToolResultFromError(t *testing.T) {
	result := toolResultFromError(errors.New("boom"))
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok || text.Text != "internal_error: boom" {
		t.Fatalf("unexpected result %#v", result.Content)
	}
	if !result.IsError {
		t.Fatal("expected IsError")
	}
}
