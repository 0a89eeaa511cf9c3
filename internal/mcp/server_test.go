package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosettalab/xlate/internal/apperr"
	"github.com/rosettalab/xlate/internal/engine"
	"github.com/rosettalab/xlate/internal/models"
	"github.com/rosettalab/xlate/internal/store"
	"github.com/rosettalab/xlate/internal/translate"
	"github.com/rosettalab/xlate/internal/verify"
)

// ---------------------------------------------------------------------------
// Stub collaborators
// ---------------------------------------------------------------------------

// stubTranslator returns a marked-up copy of the fragment.
type stubTranslator struct {
	err error
}

func (s *stubTranslator) Translate(_ context.Context, fragment, _ string) (translate.Translation, error) {
	if s.err != nil {
		return translate.Translation{}, s.err
	}
	return translate.Translation{TargetFragment: "T(" + fragment + ")", Explanation: "stub"}, nil
}

var _ translate.Translator = (*stubTranslator)(nil)

// stubVerifier passes every kind unless failSyntax is set.
type stubVerifier struct {
	failSyntax bool
}

func (s *stubVerifier) Verify(_ context.Context, _ string, kind models.VerificationKind) (verify.Outcome, error) {
	if s.failSyntax && kind == models.KindSyntax {
		return verify.Outcome{Passed: false, Details: "unbalanced"}, nil
	}
	return verify.Outcome{Passed: true, Details: "ok"}, nil
}

var _ verify.Verifier = (*stubVerifier)(nil)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T, tr translate.Translator, v verify.Verifier) *Server {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.StepTimeout = 2 * time.Second
	e := engine.New(store.NewMemoryStore(), tr, v, nil, cfg)
	srv := NewServer(e, nil)
	require.NotNil(t, srv)
	return srv
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// openSession opens a two-statement python-to-go session and returns its id.
func openSession(t *testing.T, srv *Server, args map[string]any) string {
	t.Helper()
	base := map[string]any{
		"source_code":        "x = 1\ny = 2",
		"source_language":    "python",
		"target_language":    "go",
		"step_size":          "statement",
		"verification_level": "basic",
	}
	for k, v := range args {
		base[k] = v
	}

	result, err := srv.handleOpen(context.Background(), callToolReq("xlate_open", base))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		SessionID string `json:"session_id"`
	}
	resultJSON(t, result, &out)
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

// ---------------------------------------------------------------------------
// Tests: xlate_open
// ---------------------------------------------------------------------------

func TestHandleOpen(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})

	result, err := srv.handleOpen(context.Background(), callToolReq("xlate_open", map[string]any{
		"source_code":     "x = 1\ny = 2",
		"source_language": "python",
		"target_language": "go",
	}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	var out struct {
		SessionID  string `json:"session_id"`
		TotalSteps int    `json:"total_steps"`
		State      string `json:"state"`
	}
	resultJSON(t, result, &out)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, 2, out.TotalSteps)
	assert.Equal(t, "open", out.State)
}

func TestHandleOpen_MissingSourceCode(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})

	result, err := srv.handleOpen(context.Background(), callToolReq("xlate_open", map[string]any{
		"target_language": "go",
	}))
	require.NoError(t, err, "handler should not return Go error; should wrap in result")
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(apperr.CodeBadRequest))
}

func TestHandleOpen_BadStepSize(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})

	result, err := srv.handleOpen(context.Background(), callToolReq("xlate_open", map[string]any{
		"source_code":     "x = 1",
		"source_language": "python",
		"target_language": "go",
		"step_size":       "paragraph",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "step_size")
}

func TestHandleOpen_UnknownLanguage(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})

	result, err := srv.handleOpen(context.Background(), callToolReq("xlate_open", map[string]any{
		"source_code":     "qqq zzz",
		"target_language": "go",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(apperr.CodeLanguageUnknown))
}

// ---------------------------------------------------------------------------
// Tests: xlate_advance
// ---------------------------------------------------------------------------

func TestHandleAdvance(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	id := openSession(t, srv, nil)

	result, err := srv.handleAdvance(context.Background(), callToolReq("xlate_advance", map[string]any{
		"session_id": id,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		StepIndex      int    `json:"step_index"`
		TargetFragment string `json:"target_fragment"`
		State          string `json:"state"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, 0, out.StepIndex)
	assert.Equal(t, "T(x = 1)", out.TargetFragment)
	assert.Equal(t, "open", out.State)
}

func TestHandleAdvance_SessionNotFound(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})

	result, err := srv.handleAdvance(context.Background(), callToolReq("xlate_advance", map[string]any{
		"session_id": "missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(apperr.CodeSessionNotFound))
}

func TestHandleAdvance_FatalVerificationCarriesReport(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{failSyntax: true})
	id := openSession(t, srv, nil)

	result, err := srv.handleAdvance(context.Background(), callToolReq("xlate_advance", map[string]any{
		"session_id": id,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, string(apperr.CodeVerificationFatal))
	assert.Contains(t, text, `"report"`, "failing step report rides along with the error")
	assert.Contains(t, text, "unbalanced")
}

// ---------------------------------------------------------------------------
// Tests: xlate_feedback
// ---------------------------------------------------------------------------

func TestHandleFeedback_RejectionRollsBack(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	ctx := context.Background()
	id := openSession(t, srv, nil)

	_, err := srv.handleAdvance(ctx, callToolReq("xlate_advance", map[string]any{"session_id": id}))
	require.NoError(t, err)

	result, err := srv.handleFeedback(ctx, callToolReq("xlate_feedback", map[string]any{
		"session_id": id,
		"kind":       "rejection",
		"step_index": 0,
		"content":    "not idiomatic",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))

	var out struct {
		Accepted   bool   `json:"accepted"`
		State      string `json:"new_state"`
		RolledBack bool   `json:"rolled_back"`
	}
	resultJSON(t, result, &out)
	assert.True(t, out.Accepted)
	assert.True(t, out.RolledBack)
	assert.Equal(t, "open", out.State)
}

func TestHandleFeedback_BadKind(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	id := openSession(t, srv, nil)

	result, err := srv.handleFeedback(context.Background(), callToolReq("xlate_feedback", map[string]any{
		"session_id": id,
		"kind":       "praise",
		"step_index": 0,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "feedback kind")
}

func TestHandleFeedback_MissingStepIndex(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	id := openSession(t, srv, nil)

	result, err := srv.handleFeedback(context.Background(), callToolReq("xlate_feedback", map[string]any{
		"session_id": id,
		"kind":       "approval",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "step_index")
}

// ---------------------------------------------------------------------------
// Tests: xlate_rollback
// ---------------------------------------------------------------------------

func TestHandleRollback(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	ctx := context.Background()
	id := openSession(t, srv, nil)

	_, err := srv.handleAdvance(ctx, callToolReq("xlate_advance", map[string]any{"session_id": id}))
	require.NoError(t, err)

	result, err := srv.handleRollback(ctx, callToolReq("xlate_rollback", map[string]any{"session_id": id}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		CurrentStep int    `json:"new_current_step"`
		State       string `json:"new_state"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, 0, out.CurrentStep)
	assert.Equal(t, "open", out.State)
}

func TestHandleRollback_NothingToRollBack(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	id := openSession(t, srv, nil)

	result, err := srv.handleRollback(context.Background(), callToolReq("xlate_rollback", map[string]any{"session_id": id}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(apperr.CodeIllegalState))
}

// ---------------------------------------------------------------------------
// Tests: xlate_state and xlate_list
// ---------------------------------------------------------------------------

func TestHandleState(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	ctx := context.Background()
	id := openSession(t, srv, nil)

	_, err := srv.handleAdvance(ctx, callToolReq("xlate_advance", map[string]any{"session_id": id}))
	require.NoError(t, err)

	result, err := srv.handleState(ctx, callToolReq("xlate_state", map[string]any{"session_id": id}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var sess models.Session
	resultJSON(t, result, &sess)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, 1, sess.CurrentStep)
	assert.Equal(t, "T(x = 1)", sess.PartialTargetCode)
	require.Len(t, sess.StepRecords, 1)
}

func TestHandleList(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	openSession(t, srv, nil)
	openSession(t, srv, nil)

	result, err := srv.handleList(context.Background(), callToolReq("xlate_list", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out []struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	resultJSON(t, result, &out)
	assert.Len(t, out, 2)
}

// ---------------------------------------------------------------------------
// Tests: xlate_close
// ---------------------------------------------------------------------------

func TestHandleClose(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})
	ctx := context.Background()
	id := openSession(t, srv, nil)

	result, err := srv.handleClose(ctx, callToolReq("xlate_close", map[string]any{"session_id": id}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var body struct {
		Closed    bool   `json:"closed"`
		SessionID string `json:"session_id"`
		State     string `json:"state"`
	}
	resultJSON(t, result, &body)
	assert.True(t, body.Closed)
	assert.Equal(t, id, body.SessionID)
	assert.Equal(t, string(models.StateClosed), body.State)

	// Closed sessions reject advances with a stable code.
	result, err = srv.handleAdvance(ctx, callToolReq("xlate_advance", map[string]any{"session_id": id}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(apperr.CodeSessionClosed))

	// Close is idempotent.
	result, err = srv.handleClose(ctx, callToolReq("xlate_close", map[string]any{"session_id": id}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: Integration -- verify all tools are registered via HandleMessage
// ---------------------------------------------------------------------------

func TestMCPIntegration_ListTools(t *testing.T) {
	srv := newTestServer(t, &stubTranslator{}, &stubVerifier{})

	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	ctx := context.Background()
	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(ctx, reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	err = json.Unmarshal(respBytes, &rpcResp)
	require.NoError(t, err)

	toolNames := make(map[string]bool)
	for _, tool := range rpcResp.Result.Tools {
		toolNames[tool.Name] = true
	}

	expectedTools := []string{
		"xlate_open",
		"xlate_advance",
		"xlate_feedback",
		"xlate_rollback",
		"xlate_state",
		"xlate_close",
		"xlate_list",
	}
	for _, name := range expectedTools {
		assert.True(t, toolNames[name], "expected tool %q to be registered", name)
	}
}
