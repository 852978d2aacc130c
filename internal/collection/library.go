package collection

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"poetica-backend/internal/metrics"
	"poetica-backend/internal/models"
	"poetica-backend/internal/repository"
)

type View string

const (
	ViewAll       View = "all"
	ViewFavorites View = "favorites"
)

// Library owns one Store per session. Each Store is loaded on first use and
// every call against it runs under that session's mutex.
type Library struct {
	kv     repository.KV
	prefix string
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionStore
}

type sessionStore struct {
	mu    sync.Mutex
	store *Store
}

func NewLibrary(kv repository.KV, keyPrefix string, logger *zap.Logger) *Library {
	return &Library{
		kv:       kv,
		prefix:   keyPrefix,
		logger:   logger,
		sessions: make(map[string]*sessionStore),
	}
}

// Key is the durable key holding sessionID's collection.
func (l *Library) Key(sessionID string) string {
	return l.prefix + ":" + sessionID
}

func (l *Library) session(sessionID string) *sessionStore {
	l.mu.Lock()
	defer l.mu.Unlock()

	ss, ok := l.sessions[sessionID]
	if !ok {
		ss = &sessionStore{store: NewStore(l.kv, l.Key(sessionID), l.logger)}
		l.sessions[sessionID] = ss
	}
	return ss
}

// With runs fn against the session's loaded Store.
func (l *Library) With(ctx context.Context, sessionID string, fn func(*Store) error) error {
	ss := l.session(sessionID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ss.store.ensureLoaded(ctx); err != nil {
		return err
	}
	return fn(ss.store)
}

func (l *Library) Save(ctx context.Context, sessionID string, record models.PoemRecord, prompt string) (models.SavedPoem, error) {
	var saved models.SavedPoem
	err := l.With(ctx, sessionID, func(s *Store) error {
		var err error
		saved, err = s.Save(ctx, record, prompt)
		return err
	})
	metrics.LibraryMutations.WithLabelValues("save", metrics.Result(err)).Inc()
	return saved, err
}

func (l *Library) Remove(ctx context.Context, sessionID, id string) error {
	err := l.With(ctx, sessionID, func(s *Store) error {
		return s.Remove(ctx, id)
	})
	metrics.LibraryMutations.WithLabelValues("remove", metrics.Result(err)).Inc()
	return err
}

// ToggleFavorite flips the flag and returns the entry as it is afterwards.
// found is false when id is unknown.
func (l *Library) ToggleFavorite(ctx context.Context, sessionID, id string) (poem models.SavedPoem, found bool, err error) {
	err = l.With(ctx, sessionID, func(s *Store) error {
		if err := s.ToggleFavorite(ctx, id); err != nil {
			return err
		}
		poem, found = s.Get(id)
		return nil
	})
	metrics.LibraryMutations.WithLabelValues("toggle_favorite", metrics.Result(err)).Inc()
	return poem, found, err
}

func (l *Library) Get(ctx context.Context, sessionID, id string) (poem models.SavedPoem, found bool, err error) {
	err = l.With(ctx, sessionID, func(s *Store) error {
		poem, found = s.Get(id)
		return nil
	})
	return poem, found, err
}

func (l *Library) List(ctx context.Context, sessionID string, view View) ([]models.SavedPoem, error) {
	var poems []models.SavedPoem
	err := l.With(ctx, sessionID, func(s *Store) error {
		if view == ViewFavorites {
			poems = s.ListFavorites()
		} else {
			poems = s.ListAll()
		}
		return nil
	})
	return poems, err
}
