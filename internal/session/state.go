// Package session holds the generation state of one client session and the
// pure transition function that advances it.
package session

import (
	"strings"

	"poetica-backend/internal/apperr"
	"poetica-backend/internal/models"
	"poetica-backend/internal/normalizer"
)

const (
	MsgEmptyPrompt   = "Please enter a topic, theme, or keywords"
	MsgNoResponse    = "No response from the agent. Please try again."
	MsgAgentFailure  = "An error occurred while generating the poem"
	MsgGenerateAgain = "Failed to generate poem. Please try again."
)

type State struct {
	Prompt     string             `json:"prompt"`
	Tone       string             `json:"tone,omitempty"`
	Loading    bool               `json:"loading"`
	RequestSeq uint64             `json:"request_seq"`
	Poem       *models.PoemRecord `json:"poem"`
	Error      string             `json:"error,omitempty"`
	ErrorKind  apperr.Kind        `json:"-"`
	ErrorCode  string             `json:"error_code,omitempty"`

	// Stage is how the last reply was normalized.
	Stage normalizer.Stage `json:"-"`
}

type Event interface {
	isEvent()
}

type PromptSubmitted struct {
	Prompt string
	Tone   string
}

// AgentResponded carries the raw reply for request Seq.
type AgentResponded struct {
	Seq uint64
	Raw string
}

// ReplyNormalized is a reply for request Seq that has already been through
// the normalizer, so reducing it does no parsing.
type ReplyNormalized struct {
	Seq    uint64
	Empty  bool
	Record models.PoemRecord
	Stage  normalizer.Stage
	Err    error
}

type AgentFailed struct {
	Seq uint64
	Err error
}

// Cleared resets the session and abandons any in-flight request.
type Cleared struct{}

func (PromptSubmitted) isEvent() {}
func (AgentResponded) isEvent()  {}
func (ReplyNormalized) isEvent() {}
func (AgentFailed) isEvent()     {}
func (Cleared) isEvent()         {}

// Normalize runs the normalizer over raw. Callers holding a lock should call
// it first and reduce the result.
func Normalize(seq uint64, raw string) ReplyNormalized {
	if strings.TrimSpace(raw) == "" {
		return ReplyNormalized{Seq: seq, Empty: true}
	}
	rec, stage, err := normalizer.NormalizeStage(raw)
	return ReplyNormalized{Seq: seq, Record: rec, Stage: stage, Err: err}
}

// Reduce returns the state that follows s after e. It never mutates s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case PromptSubmitted:
		if s.Loading {
			return s
		}
		if strings.TrimSpace(e.Prompt) == "" {
			s.Prompt = e.Prompt
			s.Tone = e.Tone
			return s.withError(apperr.KindInvalidInput, MsgEmptyPrompt)
		}
		s.Prompt = e.Prompt
		s.Tone = e.Tone
		s.Loading = true
		s.RequestSeq++
		s.Poem = nil
		s.Stage = ""
		return s.withError(apperr.KindUnknown, "")

	case AgentResponded:
		if !s.awaiting(e.Seq) {
			return s
		}
		return Reduce(s, Normalize(e.Seq, e.Raw))

	case ReplyNormalized:
		if !s.awaiting(e.Seq) {
			return s
		}
		s.Loading = false
		if e.Empty {
			s.Stage = ""
			return s.withError(apperr.KindAgentUnavailable, MsgNoResponse)
		}
		s.Stage = e.Stage
		if e.Err != nil {
			return s.withError(apperr.KindMalformedResponse, MsgGenerateAgain)
		}
		rec := e.Record
		s.Poem = &rec
		return s.withError(apperr.KindUnknown, "")

	case AgentFailed:
		if !s.awaiting(e.Seq) {
			return s
		}
		s.Loading = false
		msg := MsgAgentFailure
		if e.Err != nil {
			msg = apperr.MessageOf(e.Err, e.Err.Error())
		}
		return s.withError(apperr.KindAgentUnavailable, msg)

	case Cleared:
		return State{RequestSeq: s.RequestSeq + 1}
	}
	return s
}

// Accepted reports whether next started a new request relative to prev.
func Accepted(prev, next State) bool {
	return next.Loading && next.RequestSeq != prev.RequestSeq
}

// Stale reports whether a reply for seq would be discarded by s.
func (s State) Stale(seq uint64) bool {
	return !s.awaiting(seq)
}

func (s State) awaiting(seq uint64) bool {
	return s.Loading && seq == s.RequestSeq
}

func (s State) withError(kind apperr.Kind, msg string) State {
	s.ErrorKind = kind
	s.Error = msg
	s.ErrorCode = ""
	if msg != "" {
		s.ErrorCode = kind.String()
	}
	return s
}
