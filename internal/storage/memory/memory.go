package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage"
)

// Storage is an in-process token store. It backs local development and is
// the substitute store for tests; nothing survives a restart.
type Storage struct {
	mu      sync.RWMutex
	byValue map[string]*model.Token
	byID    map[string]*model.Token
}

func New() *Storage {
	return &Storage{
		byValue: make(map[string]*model.Token),
		byID:    make(map[string]*model.Token),
	}
}

func (s *Storage) Insert(_ context.Context, token *model.Token) error {
	const op = "storage.memory.Insert"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byValue[token.Value]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicateToken)
	}

	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	cp := *token
	s.byValue[cp.Value] = &cp
	s.byID[cp.ID] = &cp

	return nil
}

func (s *Storage) FindByValue(_ context.Context, value string, kind model.Kind) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.byValue[value]
	if !ok || (kind != model.KindAny && token.Kind != kind) {
		return nil, storage.ErrTokenNotExists
	}

	cp := *token
	return &cp, nil
}

func (s *Storage) FindByValueAndEmail(_ context.Context, value, email string, kind model.Kind) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.byValue[value]
	if !ok || token.Email != email || token.Kind != kind {
		return nil, storage.ErrTokenNotExists
	}

	cp := *token
	return &cp, nil
}

func (s *Storage) DeleteByEmailAndKind(_ context.Context, email string, kind model.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for value, token := range s.byValue {
		if token.Email == email && token.Kind == kind {
			delete(s.byValue, value)
			delete(s.byID, token.ID)
		}
	}

	return nil
}

func (s *Storage) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byID[id]
	if !ok {
		return nil
	}

	delete(s.byValue, token.Value)
	delete(s.byID, id)

	return nil
}

func (s *Storage) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for value, token := range s.byValue {
		if token.ExpiresAt.Before(now) {
			delete(s.byValue, value)
			delete(s.byID, token.ID)
			removed++
		}
	}

	return removed, nil
}

func (s *Storage) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.byValue)), nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}
