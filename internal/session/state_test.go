package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poetica-backend/internal/apperr"
	"poetica-backend/internal/normalizer"
)

const duskReply = `{"result":{"poem":"Line1\nLine2","title":"Dusk","stanza_count":1,"line_count":2}}`

func submit(t *testing.T, s State, prompt string) State {
	t.Helper()
	next := Reduce(s, PromptSubmitted{Prompt: prompt, Tone: "melancholic"})
	require.True(t, Accepted(s, next), "submission should be accepted")
	return next
}

func TestReduce_EmptyPromptRejected(t *testing.T) {
	var s State
	next := Reduce(s, PromptSubmitted{Prompt: "   "})

	assert.False(t, Accepted(s, next))
	assert.False(t, next.Loading)
	assert.Equal(t, apperr.KindInvalidInput, next.ErrorKind)
	assert.Equal(t, MsgEmptyPrompt, next.Error)
	assert.Equal(t, "INVALID_INPUT", next.ErrorCode)
	assert.Zero(t, next.RequestSeq)
}

func TestReduce_SuccessfulGeneration(t *testing.T) {
	s := submit(t, State{}, "ocean at dusk")
	assert.True(t, s.Loading)
	assert.Equal(t, uint64(1), s.RequestSeq)

	s = Reduce(s, AgentResponded{Seq: 1, Raw: duskReply})

	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	require.NotNil(t, s.Poem)
	assert.Equal(t, "Line1\nLine2", s.Poem.Poem)
	assert.Equal(t, "Dusk", *s.Poem.Title)
	assert.Equal(t, normalizer.StageDirect, s.Stage)
	assert.Equal(t, "ocean at dusk", s.Prompt)
	assert.Equal(t, "melancholic", s.Tone)
}

func TestReduce_ResubmissionBlockedWhileLoading(t *testing.T) {
	s := submit(t, State{}, "first")

	next := Reduce(s, PromptSubmitted{Prompt: "second"})
	assert.False(t, Accepted(s, next))
	assert.Equal(t, s, next)

	// Settling re-enables submission.
	s = Reduce(s, AgentFailed{Seq: 1, Err: errors.New("timeout")})
	submit(t, s, "second")
}

func TestReduce_MalformedReply(t *testing.T) {
	s := submit(t, State{}, "rain")
	s = Reduce(s, AgentResponded{Seq: s.RequestSeq, Raw: `{"result":{"title":"T"}}`})

	assert.False(t, s.Loading)
	assert.Nil(t, s.Poem)
	assert.Equal(t, apperr.KindMalformedResponse, s.ErrorKind)
	assert.Equal(t, MsgGenerateAgain, s.Error)
	assert.Equal(t, normalizer.StageFailed, s.Stage)
}

func TestReduce_EmptyReply(t *testing.T) {
	s := submit(t, State{}, "rain")
	s = Reduce(s, AgentResponded{Seq: s.RequestSeq, Raw: "  "})

	assert.Equal(t, apperr.KindAgentUnavailable, s.ErrorKind)
	assert.Equal(t, MsgNoResponse, s.Error)
}

func TestReduce_AgentFailureMessage(t *testing.T) {
	s := submit(t, State{}, "rain")

	failed := Reduce(s, AgentFailed{Seq: s.RequestSeq, Err: apperr.New(apperr.KindAgentUnavailable, "Agent is not configured")})
	assert.Equal(t, "Agent is not configured", failed.Error)

	failed = Reduce(s, AgentFailed{Seq: s.RequestSeq, Err: errors.New("context deadline exceeded")})
	assert.Equal(t, "context deadline exceeded", failed.Error)

	failed = Reduce(s, AgentFailed{Seq: s.RequestSeq})
	assert.Equal(t, MsgAgentFailure, failed.Error)
	assert.Equal(t, apperr.KindAgentUnavailable, failed.ErrorKind)
}

func TestReduce_StaleReplyAfterClearDiscarded(t *testing.T) {
	s := submit(t, State{}, "old request")
	oldSeq := s.RequestSeq

	s = Reduce(s, Cleared{})
	assert.False(t, s.Loading)
	assert.True(t, s.Stale(oldSeq))

	s = submit(t, s, "new request")
	late := Reduce(s, AgentResponded{Seq: oldSeq, Raw: duskReply})
	assert.Equal(t, s, late, "reply for an abandoned request must not change state")

	s = Reduce(s, AgentResponded{Seq: s.RequestSeq, Raw: `{"poem":"fresh"}`})
	require.NotNil(t, s.Poem)
	assert.Equal(t, "fresh", s.Poem.Poem)
}

func TestReduce_ClearResetsEverything(t *testing.T) {
	s := submit(t, State{}, "rain")
	s = Reduce(s, AgentResponded{Seq: s.RequestSeq, Raw: duskReply})
	require.NotNil(t, s.Poem)

	cleared := Reduce(s, Cleared{})
	assert.Equal(t, State{RequestSeq: s.RequestSeq + 1}, cleared)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := submit(t, State{}, "rain")
	snapshot := s

	_ = Reduce(s, AgentResponded{Seq: s.RequestSeq, Raw: duskReply})
	assert.Equal(t, snapshot, s)
}

func TestReduce_PreNormalizedReplyMatchesRaw(t *testing.T) {
	s := submit(t, State{}, "ocean at dusk")

	ev := Normalize(1, duskReply)
	require.NoError(t, ev.Err)
	assert.Equal(t, normalizer.StageDirect, ev.Stage)

	assert.Equal(t, Reduce(s, AgentResponded{Seq: 1, Raw: duskReply}), Reduce(s, ev))
	assert.True(t, Normalize(1, "  ").Empty)
}
