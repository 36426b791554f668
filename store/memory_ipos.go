package store

import (
	"context"
	"fmt"

	"github.com/fenilmodi00/ipo-tracker/models"
)

type MemoryIPOStore struct {
	t *table[models.IPO]
}

func NewMemoryIPOStore(path string) (*MemoryIPOStore, error) {
	t, err := newTable(path,
		func(i *models.IPO) int64 { return i.ID },
		func(i *models.IPO) *models.IPO { return i.Clone() },
	)
	if err != nil {
		return nil, err
	}
	return &MemoryIPOStore{t: t}, nil
}

func (s *MemoryIPOStore) Create(ctx context.Context, ipo *models.IPO) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.insertLocked(ipo, func(i *models.IPO, id int64) { i.ID = id })
}

func (s *MemoryIPOStore) GetByID(ctx context.Context, id int64) (*models.IPO, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	ipo, ok := s.t.getLocked(id)
	if !ok {
		return nil, fmt.Errorf("ipo %d: %w", id, ErrNotFound)
	}
	return ipo, nil
}

func (s *MemoryIPOStore) List(ctx context.Context) ([]models.IPO, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.sortedLocked(nil), nil
}

func (s *MemoryIPOStore) Update(ctx context.Context, id int64, mutate func(*models.IPO) error) (*models.IPO, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	ipo, ok := s.t.getLocked(id)
	if !ok {
		return nil, fmt.Errorf("ipo %d: %w", id, ErrNotFound)
	}
	if err := mutate(ipo); err != nil {
		return nil, err
	}
	ipo.ID = id
	if err := s.t.replaceLocked(id, ipo); err != nil {
		return nil, err
	}
	return ipo.Clone(), nil
}

func (s *MemoryIPOStore) Delete(ctx context.Context, id int64) (*models.IPO, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	ipo, ok := s.t.getLocked(id)
	if !ok {
		return nil, fmt.Errorf("ipo %d: %w", id, ErrNotFound)
	}
	if err := s.t.deleteLocked(id); err != nil {
		return nil, err
	}
	return ipo, nil
}
