// Package collection keeps a session's saved poems in memory and mirrors
// the whole list to a repository.KV after every change.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poetica-backend/internal/apperr"
	"poetica-backend/internal/models"
	"poetica-backend/internal/repository"
)

const (
	unavailableMessage = "Saved poems are temporarily unavailable. Please try again."

	MsgNothingToSave = "There is no poem to save"
)

// Store is not safe for concurrent use; Library serializes access per session.
type Store struct {
	kv     repository.KV
	key    string
	logger *zap.Logger

	poems  []models.SavedPoem
	loaded bool

	now   func() time.Time
	newID func() string
}

func NewStore(kv repository.KV, key string, logger *zap.Logger) *Store {
	return &Store{
		kv:     kv,
		key:    key,
		logger: logger,
		poems:  []models.SavedPoem{},
		now:    time.Now,
		newID:  newPoemID,
	}
}

func newPoemID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load reads the full collection. A missing key or an undecodable value
// yields an empty collection; only backend failures are returned.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, repository.ErrNotFound) {
		s.poems = []models.SavedPoem{}
		s.loaded = true
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStorageUnavailable, unavailableMessage, err)
	}

	var poems []models.SavedPoem
	if err := json.Unmarshal([]byte(raw), &poems); err != nil {
		s.logger.Warn("saved poem collection is corrupt, starting empty",
			zap.String("key", s.key),
			zap.Error(apperr.Wrap(apperr.KindStorageCorrupt, "decode saved poems", err)),
		)
		poems = nil
	}
	if poems == nil {
		poems = []models.SavedPoem{}
	}

	s.poems = poems
	s.loaded = true
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.Load(ctx)
}

// Save prepends a new entry built from record and persists the collection.
func (s *Store) Save(ctx context.Context, record models.PoemRecord, prompt string) (models.SavedPoem, error) {
	if strings.TrimSpace(record.Poem) == "" {
		return models.SavedPoem{}, apperr.New(apperr.KindInvalidInput, MsgNothingToSave)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return models.SavedPoem{}, err
	}

	now := s.now()
	title := "Poem - " + now.Format("1/2/2006")
	if record.Title != nil && strings.TrimSpace(*record.Title) != "" {
		title = *record.Title
	}

	poem := models.SavedPoem{
		ID:        s.newID(),
		Title:     title,
		Content:   record.Poem,
		Style:     copyString(record.Style),
		Prompt:    prompt,
		Timestamp: now.UnixMilli(),
	}

	prev := s.poems
	s.poems = append([]models.SavedPoem{poem}, prev...)
	if err := s.persist(ctx); err != nil {
		s.poems = prev
		return models.SavedPoem{}, err
	}
	return poem, nil
}

// Remove deletes the entry with id. Unknown ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	prev := s.poems
	next := make([]models.SavedPoem, 0, len(prev))
	for _, p := range prev {
		if p.ID != id {
			next = append(next, p)
		}
	}

	s.poems = next
	if err := s.persist(ctx); err != nil {
		s.poems = prev
		return err
	}
	return nil
}

// ToggleFavorite flips IsFavorite on the entry with id. Unknown ids are a no-op.
func (s *Store) ToggleFavorite(ctx context.Context, id string) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	idx := s.indexOf(id)
	if idx >= 0 {
		s.poems[idx].IsFavorite = !s.poems[idx].IsFavorite
	}
	if err := s.persist(ctx); err != nil {
		if idx >= 0 {
			s.poems[idx].IsFavorite = !s.poems[idx].IsFavorite
		}
		return err
	}
	return nil
}

func (s *Store) Get(id string) (models.SavedPoem, bool) {
	if idx := s.indexOf(id); idx >= 0 {
		return s.poems[idx], true
	}
	return models.SavedPoem{}, false
}

// ListAll returns every entry, most recent first.
func (s *Store) ListAll() []models.SavedPoem {
	return sortByRecency(append([]models.SavedPoem(nil), s.poems...))
}

// ListFavorites returns favorite entries, most recent first.
func (s *Store) ListFavorites() []models.SavedPoem {
	favorites := []models.SavedPoem{}
	for _, p := range s.poems {
		if p.IsFavorite {
			favorites = append(favorites, p)
		}
	}
	return sortByRecency(favorites)
}

func (s *Store) indexOf(id string) int {
	for i, p := range s.poems {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.poems)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return apperr.Wrap(apperr.KindStorageUnavailable, unavailableMessage, err)
	}
	return nil
}

// Ties keep collection order.
func sortByRecency(poems []models.SavedPoem) []models.SavedPoem {
	if poems == nil {
		poems = []models.SavedPoem{}
	}
	sort.SliceStable(poems, func(i, j int) bool {
		return poems[i].Timestamp > poems[j].Timestamp
	})
	return poems
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
