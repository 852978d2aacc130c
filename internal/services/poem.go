package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"poetica-backend/internal/agent"
	"poetica-backend/internal/apperr"
	"poetica-backend/internal/collection"
	"poetica-backend/internal/events"
	"poetica-backend/internal/metrics"
	"poetica-backend/internal/models"
	"poetica-backend/internal/session"
	"poetica-backend/internal/worker"
)

const MsgBusy = "A poem is already being generated. Please wait."

// AgentCaller is satisfied by *agent.Registry.
type AgentCaller interface {
	Call(ctx context.Context, agentID, prompt string) (string, error)
}

// PoemSaver is satisfied by *collection.Library.
type PoemSaver interface {
	Save(ctx context.Context, sessionID string, record models.PoemRecord, prompt string) (models.SavedPoem, error)
}

// PoemService owns the generation state of every session. State only changes
// through session.Reduce, under mu; agent calls run on the worker pool
// without holding it.
type PoemService struct {
	agents    AgentCaller
	agentID   string
	library   PoemSaver
	publisher events.Publisher
	logger    *zap.Logger
	pool      *worker.Pool[session.State]

	mu       sync.Mutex
	sessions map[string]session.State
}

func NewPoemService(
	agents AgentCaller,
	agentID string,
	library PoemSaver,
	publisher events.Publisher,
	workerCount int,
	logger *zap.Logger,
) *PoemService {
	s := &PoemService{
		agents:    agents,
		agentID:   agentID,
		library:   library,
		publisher: publisher,
		logger:    logger,
		sessions:  make(map[string]session.State),
	}
	s.pool = worker.NewPool(s.process, workerCount, workerCount*4, logger)
	s.pool.OnDrop(s.dropped)
	return s
}

func (s *PoemService) Start() { s.pool.Start() }

// Stop waits for in-flight generations to settle and fails queued ones.
func (s *PoemService) Stop() { s.pool.Stop() }

// Generate submits prompt for sessionID and waits for the reply. When ctx ends
// first the request keeps running and its result lands in the session state.
func (s *PoemService) Generate(ctx context.Context, sessionID, prompt, tone string) (session.State, error) {
	s.mu.Lock()
	prev := s.sessions[sessionID]
	next := session.Reduce(prev, session.PromptSubmitted{Prompt: prompt, Tone: tone})
	if !session.Accepted(prev, next) {
		if prev.Loading {
			s.mu.Unlock()
			return prev, apperr.New(apperr.KindBusy, MsgBusy)
		}
		s.sessions[sessionID] = next
		s.mu.Unlock()
		return next, stateErr(next)
	}
	s.sessions[sessionID] = next
	s.mu.Unlock()

	s.publisher.Publish(ctx, sessionID, models.WSMessage{Type: events.TypeGenerationStarted, Payload: next})

	seq := next.RequestSeq
	res, err := s.pool.Submit(ctx, worker.Job{
		SessionID: sessionID,
		Seq:       seq,
		Prompt:    agent.BuildPrompt(prompt, tone),
	})
	if err != nil {
		// Nothing will answer this request, so settle it here.
		st := s.settle(sessionID, seq, session.AgentFailed{
			Seq: seq,
			Err: apperr.Wrap(apperr.KindAgentUnavailable, session.MsgNoResponse, err),
		})
		return st, stateErr(st)
	}

	select {
	case st := <-res:
		return st, stateErr(st)
	case <-ctx.Done():
		return next, ctx.Err()
	}
}

func (s *PoemService) process(ctx context.Context, job worker.Job) session.State {
	reply, err := s.agents.Call(ctx, s.agentID, job.Prompt)
	if err != nil {
		s.logger.Warn("agent call failed",
			zap.String("session_id", job.SessionID),
			zap.Uint64("seq", job.Seq),
			zap.Error(err),
		)
		return s.settle(job.SessionID, job.Seq, session.AgentFailed{Seq: job.Seq, Err: err})
	}
	// Normalizing can be slow on large replies; keep it outside mu.
	return s.settle(job.SessionID, job.Seq, session.Normalize(job.Seq, reply))
}

// dropped settles a job the pool never ran so its session stops loading.
func (s *PoemService) dropped(job worker.Job, err error) session.State {
	return s.settle(job.SessionID, job.Seq, session.AgentFailed{
		Seq: job.Seq,
		Err: apperr.Wrap(apperr.KindAgentUnavailable, session.MsgNoResponse, err),
	})
}

// settle applies the outcome of request seq unless a newer request or a clear
// has superseded it.
func (s *PoemService) settle(sessionID string, seq uint64, ev session.Event) session.State {
	s.mu.Lock()
	cur := s.sessions[sessionID]
	if cur.Stale(seq) {
		s.mu.Unlock()
		metrics.StaleReplies.Inc()
		s.logger.Info("discarding stale agent reply",
			zap.String("session_id", sessionID),
			zap.Uint64("seq", seq),
			zap.Uint64("current_seq", cur.RequestSeq),
		)
		return cur
	}
	next := session.Reduce(cur, ev)
	s.sessions[sessionID] = next
	s.mu.Unlock()

	if next.Stage != "" {
		metrics.Normalizations.WithLabelValues(string(next.Stage)).Inc()
	}

	msg := models.WSMessage{Type: events.TypePoemGenerated, Payload: next}
	if next.Error != "" {
		msg.Type = events.TypeGenerationFailed
		s.logger.Info("generation failed",
			zap.String("session_id", sessionID),
			zap.String("code", next.ErrorCode),
			zap.String("stage", string(next.Stage)),
		)
	}
	s.publisher.Publish(context.Background(), sessionID, msg)
	return next
}

func (s *PoemService) Current(sessionID string) session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

// Clear resets the session. A reply still in flight is discarded when it lands.
func (s *PoemService) Clear(ctx context.Context, sessionID string) session.State {
	s.mu.Lock()
	next := session.Reduce(s.sessions[sessionID], session.Cleared{})
	s.sessions[sessionID] = next
	s.mu.Unlock()

	s.publisher.Publish(ctx, sessionID, models.WSMessage{Type: events.TypeSessionCleared, Payload: next})
	return next
}

// SaveCurrent stores the displayed poem in the session's collection.
func (s *PoemService) SaveCurrent(ctx context.Context, sessionID string) (models.SavedPoem, error) {
	st := s.Current(sessionID)
	if st.Poem == nil {
		return models.SavedPoem{}, apperr.New(apperr.KindInvalidInput, collection.MsgNothingToSave)
	}

	saved, err := s.library.Save(ctx, sessionID, *st.Poem, st.Prompt)
	if err != nil {
		return models.SavedPoem{}, err
	}
	s.publisher.Publish(ctx, sessionID, models.WSMessage{Type: events.TypeLibraryChanged, Payload: saved})
	return saved, nil
}

func stateErr(st session.State) error {
	if st.Error == "" {
		return nil
	}
	return apperr.New(st.ErrorKind, st.Error)
}
