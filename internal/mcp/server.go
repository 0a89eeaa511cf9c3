// Package mcp exposes the session engine as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/rosettalab/xlate/internal/apperr"
	"github.com/rosettalab/xlate/internal/engine"
	"github.com/rosettalab/xlate/internal/models"
)

// Server wraps the session engine and exposes it as MCP tools.
type Server struct {
	engine *engine.Engine
	log    *zap.Logger
}

// NewServer creates the MCP server wrapper.
func NewServer(e *engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: e, log: log}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("xlate", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.openTool())
	srv.AddTool(s.advanceTool())
	srv.AddTool(s.feedbackTool())
	srv.AddTool(s.rollbackTool())
	srv.AddTool(s.stateTool())
	srv.AddTool(s.closeTool())
	srv.AddTool(s.listTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeSSE starts the SSE transport on addr, blocking until shutdown.
func (s *Server) ServeSSE(addr string) error {
	sseServer := server.NewSSEServer(s.MCPServer())
	return sseServer.Start(addr)
}

// toolError serializes a coded error for the client. The JSON body carries
// the stable code so agents can branch on it without parsing prose.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Internal(err)
	}
	if e.Code == apperr.CodeInternal {
		s.log.Error("internal error",
			zap.String("correlation_id", e.CorrelationID),
			zap.Error(e.Cause))
	}
	data, merr := json.Marshal(e)
	if merr != nil {
		return mcp.NewToolResultError(e.Error())
	}
	return mcp.NewToolResultError(string(data))
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// xlate_open
func (s *Server) openTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("xlate_open",
		mcp.WithDescription("Open a code translation session. Segments the source into steps and returns the session id, total step count, and initial state."),
		mcp.WithString("source_code", mcp.Required(), mcp.Description("Source code to translate")),
		mcp.WithString("target_language", mcp.Required(), mcp.Description("Target language identifier, e.g. go, rust, python")),
		mcp.WithString("source_language", mcp.Description("Source language identifier; inferred from the code when omitted")),
		mcp.WithString("step_size", mcp.Description("Segmentation granularity: expression, statement, function (default: statement)")),
		mcp.WithString("verification_level", mcp.Description("Verification level: basic, standard, comprehensive (default: standard)")),
		mcp.WithBoolean("interactive", mcp.Description("Pause for feedback after each step (default: false)")),
	)
	return tool, s.handleOpen
}

func (s *Server) handleOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceCode, err := request.RequireString("source_code")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: source_code")), nil
	}
	targetLanguage, err := request.RequireString("target_language")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: target_language")), nil
	}

	stepSize, err := models.ParseStepSize(request.GetString("step_size", string(models.StepStatement)))
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "%v", err)), nil
	}
	level, err := models.ParseVerificationLevel(request.GetString("verification_level", string(models.LevelStandard)))
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "%v", err)), nil
	}

	res, err := s.engine.Open(ctx, engine.OpenRequest{
		SourceCode:        sourceCode,
		SourceLanguage:    request.GetString("source_language", ""),
		TargetLanguage:    targetLanguage,
		StepSize:          stepSize,
		VerificationLevel: level,
		Interactive:       request.GetBool("interactive", false),
	})
	if err != nil {
		return s.toolError(err), nil
	}
	return marshalResult(res)
}

// xlate_advance
func (s *Server) advanceTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("xlate_advance",
		mcp.WithDescription("Translate and verify the next step of a session. Returns the target fragment, its explanation, the verification results, and the session state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
	return tool, s.handleAdvance
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: session_id")), nil
	}

	report, err := s.engine.Advance(ctx, sessionID)
	if err != nil {
		// A fatal verification still carries the failing step's report.
		if report != nil && apperr.Is(err, apperr.CodeVerificationFatal) {
			return s.failureResult(err, report)
		}
		return s.toolError(err), nil
	}
	return marshalResult(report)
}

// failureResult combines the coded error with the step report so the client
// sees what failed and why in one payload.
func (s *Server) failureResult(err error, report *engine.StepReport) (*mcp.CallToolResult, error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Internal(err)
	}
	data, merr := json.Marshal(map[string]any{
		"error":  e,
		"report": report,
	})
	if merr != nil {
		return mcp.NewToolResultError(e.Error()), nil
	}
	return mcp.NewToolResultError(string(data)), nil
}

// xlate_feedback
func (s *Server) feedbackTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("xlate_feedback",
		mcp.WithDescription("Submit feedback on a completed step. A rejection of the most recent step rolls that step back automatically."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Feedback kind: approval, suggestion, question, rejection")),
		mcp.WithNumber("step_index", mcp.Required(), mcp.Description("Index of the completed step the feedback refers to")),
		mcp.WithString("content", mcp.Description("Feedback text")),
	)
	return tool, s.handleFeedback
}

func (s *Server) handleFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: session_id")), nil
	}
	kindStr, err := request.RequireString("kind")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: kind")), nil
	}
	kind, err := models.ParseFeedbackKind(kindStr)
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "%v", err)), nil
	}
	stepIndex, err := request.RequireInt("step_index")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: step_index")), nil
	}

	res, err := s.engine.SubmitFeedback(ctx, sessionID, kind, stepIndex, request.GetString("content", ""))
	if err != nil {
		return s.toolError(err), nil
	}
	return marshalResult(res)
}

// xlate_rollback
func (s *Server) rollbackTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("xlate_rollback",
		mcp.WithDescription("Undo the most recently completed step. The session reopens at the previous step; feedback history is retained."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
	return tool, s.handleRollback
}

func (s *Server) handleRollback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: session_id")), nil
	}

	res, err := s.engine.RollbackLast(ctx, sessionID)
	if err != nil {
		return s.toolError(err), nil
	}
	return marshalResult(res)
}

// xlate_state
func (s *Server) stateTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("xlate_state",
		mcp.WithDescription("Get the full state of a session: cursor, partial target code, step records, feedback, and lifecycle state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
	return tool, s.handleState
}

func (s *Server) handleState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: session_id")), nil
	}

	sess, err := s.engine.GetState(ctx, sessionID)
	if err != nil {
		return s.toolError(err), nil
	}
	return marshalResult(sess)
}

// xlate_close
func (s *Server) closeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("xlate_close",
		mcp.WithDescription("Close a session. Closing is idempotent; an in-flight advance on the session is cancelled."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
	return tool, s.handleClose
}

func (s *Server) handleClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return s.toolError(apperr.New(apperr.CodeBadRequest, "missing required parameter: session_id")), nil
	}

	if err := s.engine.Close(ctx, sessionID); err != nil {
		return s.toolError(err), nil
	}
	return marshalResult(map[string]any{"closed": true, "session_id": sessionID, "state": models.StateClosed})
}

// xlate_list
func (s *Server) listTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("xlate_list",
		mcp.WithDescription("List all sessions with their languages, progress, and state."),
	)
	return tool, s.handleList
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.engine.List(ctx)
	if err != nil {
		return s.toolError(err), nil
	}

	type sessionOut struct {
		ID             string `json:"id"`
		SourceLanguage string `json:"source_language"`
		TargetLanguage string `json:"target_language"`
		CurrentStep    int    `json:"current_step"`
		TotalSteps     int    `json:"total_steps"`
		State          string `json:"state"`
	}

	out := make([]sessionOut, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionOut{
			ID:             sess.ID,
			SourceLanguage: sess.SourceLanguage,
			TargetLanguage: sess.TargetLanguage,
			CurrentStep:    sess.CurrentStep,
			TotalSteps:     sess.TotalSteps,
			State:          string(sess.State),
		}
	}
	return marshalResult(out)
}
