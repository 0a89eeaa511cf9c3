// Package models defines the session data model shared by the store, the
// engine, and the dispatcher. Enum tags are the exact lowercase identifiers
// used on the wire.
package models

import (
	"fmt"
	"time"
)

// StepSize is the granularity at which source code is consumed.
type StepSize string

const (
	StepExpression StepSize = "expression"
	StepStatement  StepSize = "statement"
	StepFunction   StepSize = "function"
)

// ParseStepSize rejects unknown tags rather than coercing them.
func ParseStepSize(tag string) (StepSize, error) {
	switch s := StepSize(tag); s {
	case StepExpression, StepStatement, StepFunction:
		return s, nil
	}
	return "", fmt.Errorf("unknown step_size: %q", tag)
}

// VerificationLevel selects which verifier kinds run per step.
type VerificationLevel string

const (
	LevelBasic         VerificationLevel = "basic"
	LevelStandard      VerificationLevel = "standard"
	LevelComprehensive VerificationLevel = "comprehensive"
)

func ParseVerificationLevel(tag string) (VerificationLevel, error) {
	switch l := VerificationLevel(tag); l {
	case LevelBasic, LevelStandard, LevelComprehensive:
		return l, nil
	}
	return "", fmt.Errorf("unknown verification_level: %q", tag)
}

// VerificationKind is a category of check applied to a target fragment.
type VerificationKind string

const (
	KindSyntax      VerificationKind = "syntax"
	KindType        VerificationKind = "type"
	KindProvability VerificationKind = "provability"
	KindPerformance VerificationKind = "performance"
	KindQuality     VerificationKind = "quality"
)

// KindOrder is the canonical ordering of verification results within a step.
var KindOrder = []VerificationKind{KindSyntax, KindType, KindProvability, KindPerformance, KindQuality}

func ParseVerificationKind(tag string) (VerificationKind, error) {
	switch k := VerificationKind(tag); k {
	case KindSyntax, KindType, KindProvability, KindPerformance, KindQuality:
		return k, nil
	}
	return "", fmt.Errorf("unknown verification kind: %q", tag)
}

// FeedbackKind classifies user feedback on a completed step.
type FeedbackKind string

const (
	FeedbackApproval   FeedbackKind = "approval"
	FeedbackSuggestion FeedbackKind = "suggestion"
	FeedbackQuestion   FeedbackKind = "question"
	FeedbackRejection  FeedbackKind = "rejection"
)

func ParseFeedbackKind(tag string) (FeedbackKind, error) {
	switch k := FeedbackKind(tag); k {
	case FeedbackApproval, FeedbackSuggestion, FeedbackQuestion, FeedbackRejection:
		return k, nil
	}
	return "", fmt.Errorf("unknown feedback kind: %q", tag)
}

// SessionState is the lifecycle state of a translation session.
type SessionState string

const (
	StateOpen             SessionState = "open"
	StateAwaitingFeedback SessionState = "awaiting_feedback"
	StateCompleted        SessionState = "completed"
	StateFailed           SessionState = "failed"
	StateClosed           SessionState = "closed"
)

// VerificationResult is the outcome of one verifier invocation for one step.
type VerificationResult struct {
	StepIndex   int              `json:"step_index"`
	Kind        VerificationKind `json:"kind"`
	Passed      bool             `json:"passed"`
	Details     string           `json:"details"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// UserFeedback is a feedback item attached to a completed step.
type UserFeedback struct {
	StepIndex int          `json:"step_index"`
	Kind      FeedbackKind `json:"kind"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
}

// StepRecord captures everything produced for one committed step. Feedback
// lives on the session, not the record: a rollback removes the record but
// feedback is retained as history.
type StepRecord struct {
	Index          int                  `json:"index"`
	SourceFragment string               `json:"source_fragment"`
	TargetFragment string               `json:"target_fragment"`
	Explanation    string               `json:"explanation"`
	Verifications  []VerificationResult `json:"verifications"`
}

// Session is the long-lived object representing one ongoing translation.
// Fragments is the segmentation computed once at creation; StepRecords grows
// one entry per committed step and always has length CurrentStep.
type Session struct {
	ID                string               `json:"id"`
	SourceCode        string               `json:"source_code"`
	SourceLanguage    string               `json:"source_language"`
	TargetLanguage    string               `json:"target_language"`
	StepSize          StepSize             `json:"step_size"`
	VerificationLevel VerificationLevel    `json:"verification_level"`
	Interactive       bool                 `json:"interactive"`
	Fragments         []string             `json:"fragments"`
	TotalSteps        int                  `json:"total_steps"`
	CurrentStep       int                  `json:"current_step"`
	PartialTargetCode string               `json:"partial_target_code"`
	StepRecords       []StepRecord         `json:"step_records"`
	Feedback          []UserFeedback       `json:"feedback,omitempty"`
	State             SessionState         `json:"state"`
	FailureReason     string               `json:"failure_reason,omitempty"`
	FailureResults    []VerificationResult `json:"failure_results,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	LastActivityAt    time.Time            `json:"last_activity_at"`
}

// FeedbackFor returns the feedback items tagged with the given step, in
// arrival order.
func (s *Session) FeedbackFor(step int) []UserFeedback {
	var out []UserFeedback
	for _, f := range s.Feedback {
		if f.StepIndex == step {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy. Snapshots handed out by the store are clones so
// callers can never alias the stored session.
func (s *Session) Clone() *Session {
	out := *s
	out.Fragments = append([]string(nil), s.Fragments...)
	out.StepRecords = make([]StepRecord, len(s.StepRecords))
	for i, r := range s.StepRecords {
		rc := r
		rc.Verifications = append([]VerificationResult(nil), r.Verifications...)
		out.StepRecords[i] = rc
	}
	out.Feedback = append([]UserFeedback(nil), s.Feedback...)
	out.FailureResults = append([]VerificationResult(nil), s.FailureResults...)
	return &out
}

// Terminal reports whether no further mutation besides deletion is legal.
func (s *Session) Terminal() bool { return s.State == StateClosed }

// Advanceable reports whether an advance is legal from the current state.
func (s *Session) Advanceable() bool {
	return s.State == StateOpen || s.State == StateAwaitingFeedback
}
