package store

import (
	"context"
	"fmt"

	"github.com/fenilmodi00/ipo-tracker/models"
)

type MemoryUserStore struct {
	t *table[models.User]
}

func NewMemoryUserStore(path string) (*MemoryUserStore, error) {
	t, err := newTable(path,
		func(u *models.User) int64 { return u.ID },
		func(u *models.User) *models.User { return u.Clone() },
	)
	if err != nil {
		return nil, err
	}
	return &MemoryUserStore{t: t}, nil
}

func (s *MemoryUserStore) emailTakenLocked(email string, exceptID int64) bool {
	for id, u := range s.t.records {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (s *MemoryUserStore) Create(ctx context.Context, u *models.User) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	if s.emailTakenLocked(u.Email, 0) {
		return fmt.Errorf("create user %q: %w", u.Email, ErrDuplicateEmail)
	}
	return s.t.insertLocked(u, func(u *models.User, id int64) { u.ID = id })
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	u, ok := s.t.getLocked(id)
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	for _, u := range s.t.records {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
}

func (s *MemoryUserStore) List(ctx context.Context) ([]models.User, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.sortedLocked(nil), nil
}

func (s *MemoryUserStore) Update(ctx context.Context, id int64, mutate func(*models.User) error) (*models.User, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	u, ok := s.t.getLocked(id)
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err := mutate(u); err != nil {
		return nil, err
	}
	u.ID = id
	if s.emailTakenLocked(u.Email, id) {
		return nil, fmt.Errorf("update user %d: %w", id, ErrDuplicateEmail)
	}
	if err := s.t.replaceLocked(id, u); err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

func (s *MemoryUserStore) Delete(ctx context.Context, id int64) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	if _, ok := s.t.records[id]; !ok {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return s.t.deleteLocked(id)
}
