// Package session keeps per-browser state in memory. Nothing here is ever
// written to disk.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"meddatachat/internal/models"
)

const (
	DefaultTTL           = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

var ErrNotFound = errors.New("session not found")

// Store is a mutex-guarded map of live sessions keyed by opaque random IDs.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*models.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new empty session and returns a copy of it.
func (s *Store) Create() (*models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	se := &models.Session{
		ID:        uuid.NewString(),
		CSRFToken: token,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.sessions[se.ID] = se
	s.mu.Unlock()
	clone := *se
	return &clone, nil
}

// Get returns a copy of the session and refreshes its idle deadline. Expired
// sessions are removed and reported as ErrNotFound.
func (s *Store) Get(id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if s.expired(se, now) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	se.UpdatedAt = now
	clone := *se
	return &clone, nil
}

func (s *Store) SetCredential(id, credential string) error {
	return s.update(id, func(se *models.Session) {
		se.Credential = credential
	})
}

// SetTable replaces the session's dataset. The previous question is dropped
// since it referred to the old data.
func (s *Store) SetTable(id, fileName string, t *models.Table) error {
	return s.update(id, func(se *models.Session) {
		se.FileName = fileName
		se.Table = t
		se.LastQuestion = ""
	})
}

func (s *Store) SetLastQuestion(id, question string) error {
	return s.update(id, func(se *models.Session) {
		se.LastQuestion = question
	})
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every session idle for longer than the TTL and returns how
// many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, se := range s.sessions {
		if s.expired(se, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go s.sweepLoop(ctx, interval)
}

func (s *Store) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Int("live", s.Len()).Msg("expired sessions swept")
			}
		}
	}
}

func (s *Store) update(id string, fn func(se *models.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	if s.expired(se, now) {
		delete(s.sessions, id)
		return ErrNotFound
	}
	fn(se)
	se.UpdatedAt = now
	return nil
}

func (s *Store) expired(se *models.Session, now time.Time) bool {
	return now.Sub(se.UpdatedAt) > s.ttl
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
