// Package engine drives translation sessions through their lifecycle,
// coordinating the translator and verifier collaborators under the store's
// per-session exclusive lock.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rosettalab/xlate/internal/apperr"
	"github.com/rosettalab/xlate/internal/lang"
	"github.com/rosettalab/xlate/internal/models"
	"github.com/rosettalab/xlate/internal/store"
	"github.com/rosettalab/xlate/internal/translate"
	"github.com/rosettalab/xlate/internal/verify"
)

// Config holds the engine's policy knobs.
type Config struct {
	// StepTimeout is the overall deadline for one advance, shared by the
	// translator call and the verification matrix.
	StepTimeout time.Duration

	// AdvisoryFatal makes advisory verification failures without suggestions
	// fatal at comprehensive level.
	AdvisoryFatal bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{StepTimeout: 60 * time.Second, AdvisoryFatal: true}
}

// Engine executes session operations. All mutations run under the store's
// per-session lock; operations on distinct sessions proceed in parallel.
type Engine struct {
	store      store.Store
	translator translate.Translator
	verifier   verify.Verifier
	log        *zap.Logger
	cfg        Config
}

// New creates an engine with the given collaborators.
func New(s store.Store, t translate.Translator, v verify.Verifier, log *zap.Logger, cfg Config) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultConfig().StepTimeout
	}
	return &Engine{store: s, translator: t, verifier: v, log: log, cfg: cfg}
}

// OpenRequest carries the parameters for opening a session. Tags have been
// parsed by the dispatcher; SourceLanguage may be empty, in which case the
// classifier fills it in.
type OpenRequest struct {
	SourceCode        string
	SourceLanguage    string
	TargetLanguage    string
	StepSize          models.StepSize
	VerificationLevel models.VerificationLevel
	Interactive       bool
}

// OpenResult reports the created session.
type OpenResult struct {
	SessionID  string              `json:"session_id"`
	TotalSteps int                 `json:"total_steps"`
	State      models.SessionState `json:"state"`
}

// Open segments the source, constructs the session and inserts it into the
// store.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	if strings.TrimSpace(req.SourceCode) == "" {
		return nil, apperr.New(apperr.CodeBadRequest, "source_code must not be empty")
	}
	if req.TargetLanguage == "" {
		return nil, apperr.New(apperr.CodeBadRequest, "target_language is required")
	}

	srcLang := req.SourceLanguage
	if srcLang == "" {
		srcLang = lang.Detect(req.SourceCode)
		if srcLang == lang.Unknown {
			return nil, apperr.New(apperr.CodeLanguageUnknown, "could not infer source language; specify source_language")
		}
	}

	fragments := translate.Segment(req.SourceCode, req.StepSize)
	if len(fragments) == 0 {
		return nil, apperr.New(apperr.CodeBadRequest, "source_code yields no translatable fragments")
	}

	now := time.Now().UTC()
	sess := &models.Session{
		SourceCode:        req.SourceCode,
		SourceLanguage:    srcLang,
		TargetLanguage:    req.TargetLanguage,
		StepSize:          req.StepSize,
		VerificationLevel: req.VerificationLevel,
		Interactive:       req.Interactive,
		Fragments:         fragments,
		TotalSteps:        len(fragments),
		State:             models.StateOpen,
		CreatedAt:         now,
		LastActivityAt:    now,
	}

	id, err := e.store.Create(ctx, sess)
	if err != nil {
		return nil, err
	}

	e.log.Debug("session opened",
		zap.String("session_id", id),
		zap.String("source_language", srcLang),
		zap.String("target_language", req.TargetLanguage),
		zap.Int("total_steps", len(fragments)))

	return &OpenResult{SessionID: id, TotalSteps: len(fragments), State: models.StateOpen}, nil
}

// StepReport is the outcome of one advance.
type StepReport struct {
	StepIndex      int                         `json:"step_index"`
	TargetFragment string                      `json:"target_fragment"`
	Explanation    string                      `json:"explanation"`
	Verifications  []models.VerificationResult `json:"verifications"`
	Feedback       []models.UserFeedback       `json:"feedback,omitempty"`
	State          models.SessionState         `json:"state"`
	CurrentStep    int                         `json:"current_step"`
	TotalSteps     int                         `json:"total_steps"`
}

// Advance translates and verifies the next fragment. The per-session lock
// is held across the translator and verifier suspensions; the step deadline
// and close-interrupts propagate through the mutator context.
func (e *Engine) Advance(ctx context.Context, sessionID string) (*StepReport, error) {
	var report *StepReport
	var opErr error

	err := e.store.WithSession(ctx, sessionID, func(wctx context.Context, s *models.Session) error {
		if s.State == models.StateClosed {
			return apperr.New(apperr.CodeSessionClosed, "session %s is closed", s.ID)
		}
		if !s.Advanceable() {
			return apperr.New(apperr.CodeIllegalState, "cannot advance session in state %s", s.State)
		}
		if s.CurrentStep >= s.TotalSteps {
			return apperr.New(apperr.CodeIllegalState, "session already at final step %d", s.TotalSteps)
		}

		sctx, cancel := context.WithTimeout(wctx, e.cfg.StepTimeout)
		defer cancel()

		fragment := s.Fragments[s.CurrentStep]

		tr, err := e.translator.Translate(sctx, fragment, s.TargetLanguage)
		if err != nil {
			return e.handleTranslateErr(s, err, sctx, &opErr)
		}

		results, err := verify.RunMatrix(sctx, e.verifier, tr.TargetFragment, s.CurrentStep, s.VerificationLevel)
		if err != nil {
			return e.handleVerifyErr(s, err, sctx, &opErr)
		}

		var fatal []models.VerificationResult
		for _, r := range results {
			if verify.Fatal(s.VerificationLevel, r, e.cfg.AdvisoryFatal) {
				fatal = append(fatal, r)
			}
		}

		now := time.Now().UTC()
		s.LastActivityAt = now

		if len(fatal) > 0 {
			s.State = models.StateFailed
			s.FailureReason = "fatal verification failure: " + describeFailures(fatal)
			s.FailureResults = fatal
			report = e.reportFor(s, s.CurrentStep, tr, results)
			opErr = apperr.New(apperr.CodeVerificationFatal, "%s", s.FailureReason)
			e.log.Warn("step failed verification",
				zap.String("session_id", s.ID),
				zap.Int("step", s.CurrentStep),
				zap.Int("fatal_results", len(fatal)))
			return nil
		}

		if s.CurrentStep > 0 {
			s.PartialTargetCode += translate.Separator(s.TargetLanguage)
		}
		s.PartialTargetCode += tr.TargetFragment
		s.StepRecords = append(s.StepRecords, models.StepRecord{
			Index:          s.CurrentStep,
			SourceFragment: fragment,
			TargetFragment: tr.TargetFragment,
			Explanation:    tr.Explanation,
			Verifications:  results,
		})
		s.CurrentStep++

		switch {
		case s.CurrentStep == s.TotalSteps:
			s.State = models.StateCompleted
		case s.Interactive:
			s.State = models.StateAwaitingFeedback
		default:
			s.State = models.StateOpen
		}

		report = e.reportFor(s, s.CurrentStep-1, tr, results)
		e.log.Debug("step committed",
			zap.String("session_id", s.ID),
			zap.Int("step", s.CurrentStep-1),
			zap.String("state", string(s.State)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return report, opErr
	}
	return report, nil
}

func (e *Engine) reportFor(s *models.Session, step int, tr translate.Translation, results []models.VerificationResult) *StepReport {
	return &StepReport{
		StepIndex:      step,
		TargetFragment: tr.TargetFragment,
		Explanation:    tr.Explanation,
		Verifications:  results,
		Feedback:       s.FeedbackFor(step),
		State:          s.State,
		CurrentStep:    s.CurrentStep,
		TotalSteps:     s.TotalSteps,
	}
}

// handleTranslateErr classifies a translator error. Malformed fragments and
// unsupported targets can never succeed on retry, so they fail the session;
// everything else is transient and leaves the session untouched apart from
// the activity timestamp.
func (e *Engine) handleTranslateErr(s *models.Session, err error, sctx context.Context, opErr *error) error {
	if cerr := ctxError(sctx, err); cerr != nil {
		return cerr
	}

	s.LastActivityAt = time.Now().UTC()

	switch {
	case errors.Is(err, translate.ErrMalformedFragment), errors.Is(err, translate.ErrUnsupportedTarget):
		s.State = models.StateFailed
		s.FailureReason = "translator: " + err.Error()
		*opErr = apperr.Wrap(err, apperr.CodeTranslatorFailed, "translation failed for step %d", s.CurrentStep)
		return nil
	default:
		*opErr = apperr.Wrap(err, apperr.CodeTranslatorFailed, "translator error on step %d (transient)", s.CurrentStep)
		return nil
	}
}

// handleVerifyErr classifies a verifier error. Unavailability is transient:
// the step is not committed and a later advance retries it.
func (e *Engine) handleVerifyErr(s *models.Session, err error, sctx context.Context, opErr *error) error {
	if cerr := ctxError(sctx, err); cerr != nil {
		return cerr
	}

	s.LastActivityAt = time.Now().UTC()

	if errors.Is(err, verify.ErrUnavailable) {
		*opErr = apperr.Wrap(err, apperr.CodeVerifierUnavailable, "verifier unavailable on step %d", s.CurrentStep)
		return nil
	}
	*opErr = apperr.Internal(err)
	e.log.Error("verifier internal error",
		zap.String("session_id", s.ID),
		zap.String("correlation_id", (*opErr).(*apperr.Error).CorrelationID),
		zap.Error(err))
	return nil
}

// ctxError maps a context-induced collaborator failure to the wire codes:
// deadline expiry is a Timeout, interruption or client disconnect is
// Cancelled. Returning the error (rather than recording it) aborts the
// mutator so nothing commits.
func ctxError(sctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(sctx.Err(), context.DeadlineExceeded):
		return apperr.New(apperr.CodeTimeout, "step deadline exceeded")
	case errors.Is(err, context.Canceled) || errors.Is(sctx.Err(), context.Canceled):
		return apperr.New(apperr.CodeCancelled, "operation cancelled")
	}
	return nil
}

func describeFailures(fatal []models.VerificationResult) string {
	var parts []string
	for _, r := range fatal {
		parts = append(parts, string(r.Kind))
	}
	return strings.Join(parts, ", ")
}

// FeedbackResult reports the session state after feedback was applied.
type FeedbackResult struct {
	Accepted   bool                `json:"accepted"`
	State      models.SessionState `json:"new_state"`
	RolledBack bool                `json:"rolled_back"`
}

// SubmitFeedback appends a feedback item. A rejection of the most recently
// completed step triggers exactly one automatic rollback.
func (e *Engine) SubmitFeedback(ctx context.Context, sessionID string, kind models.FeedbackKind, stepIndex int, content string) (*FeedbackResult, error) {
	var res *FeedbackResult

	err := e.store.WithSession(ctx, sessionID, func(_ context.Context, s *models.Session) error {
		if s.State == models.StateClosed {
			return apperr.New(apperr.CodeSessionClosed, "session %s is closed", s.ID)
		}
		if stepIndex < 0 || stepIndex >= s.CurrentStep {
			return apperr.New(apperr.CodeBadRequest, "feedback step_index %d out of range [0, %d)", stepIndex, s.CurrentStep)
		}

		now := time.Now().UTC()
		s.Feedback = append(s.Feedback, models.UserFeedback{
			StepIndex: stepIndex,
			Kind:      kind,
			Content:   content,
			Timestamp: now,
		})
		s.LastActivityAt = now

		rolledBack := false
		if kind == models.FeedbackRejection && stepIndex == s.CurrentStep-1 {
			rollback(s, now)
			rolledBack = true
		}

		res = &FeedbackResult{Accepted: true, State: s.State, RolledBack: rolledBack}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RollbackResult reports the cursor after a rollback.
type RollbackResult struct {
	CurrentStep int                 `json:"new_current_step"`
	State       models.SessionState `json:"new_state"`
}

// RollbackLast undoes the most recently committed step.
func (e *Engine) RollbackLast(ctx context.Context, sessionID string) (*RollbackResult, error) {
	var res *RollbackResult

	err := e.store.WithSession(ctx, sessionID, func(_ context.Context, s *models.Session) error {
		if s.State == models.StateClosed {
			return apperr.New(apperr.CodeSessionClosed, "session %s is closed", s.ID)
		}
		if s.CurrentStep == 0 {
			return apperr.New(apperr.CodeIllegalState, "no completed steps to roll back")
		}

		rollback(s, time.Now().UTC())
		res = &RollbackResult{CurrentStep: s.CurrentStep, State: s.State}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// rollback removes the last step record, rebuilds the partial target code
// and reopens the session. Failure bookkeeping from a failed verification is
// cleared; feedback history is retained.
func rollback(s *models.Session, now time.Time) {
	s.StepRecords = s.StepRecords[:len(s.StepRecords)-1]
	s.CurrentStep--

	sep := translate.Separator(s.TargetLanguage)
	var parts []string
	for _, r := range s.StepRecords {
		parts = append(parts, r.TargetFragment)
	}
	s.PartialTargetCode = strings.Join(parts, sep)

	s.State = models.StateOpen
	s.FailureReason = ""
	s.FailureResults = nil
	s.LastActivityAt = now
}

// GetState returns a read-only snapshot of the session.
func (e *Engine) GetState(ctx context.Context, sessionID string) (*models.Session, error) {
	return e.store.Get(ctx, sessionID)
}

// Close transitions the session to Closed. Closing is idempotent and always
// honored immediately: any in-flight advance on the session observes
// cancellation at its next suspension point.
func (e *Engine) Close(ctx context.Context, sessionID string) error {
	snap, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if snap.State == models.StateClosed {
		return nil
	}

	e.store.Interrupt(sessionID)

	return e.store.WithSession(ctx, sessionID, func(_ context.Context, s *models.Session) error {
		s.State = models.StateClosed
		s.LastActivityAt = time.Now().UTC()
		return nil
	})
}

// List returns snapshots of all sessions.
func (e *Engine) List(ctx context.Context) ([]*models.Session, error) {
	return e.store.List(ctx)
}
