package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
)

type MemoryApplicationStore struct {
	t *table[models.Application]
}

func NewMemoryApplicationStore(path string) (*MemoryApplicationStore, error) {
	t, err := newTable(path,
		func(a *models.Application) int64 { return a.ID },
		func(a *models.Application) *models.Application { return a.Clone() },
	)
	if err != nil {
		return nil, err
	}
	return &MemoryApplicationStore{t: t}, nil
}

func (s *MemoryApplicationStore) Create(ctx context.Context, app *models.Application) error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	for _, existing := range s.t.records {
		if existing.ApplicationNumber == app.ApplicationNumber {
			return fmt.Errorf("create application %s: %w", app.ApplicationNumber, ErrDuplicateApplicationNumber)
		}
		if app.UserID != 0 && existing.UserID == app.UserID && existing.IPOID == app.IPOID {
			return fmt.Errorf("create application user=%d ipo=%d: %w", app.UserID, app.IPOID, ErrDuplicateApplication)
		}
	}
	return s.t.insertLocked(app, func(a *models.Application, id int64) { a.ID = id })
}

func (s *MemoryApplicationStore) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	app, ok := s.t.getLocked(id)
	if !ok {
		return nil, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	return app, nil
}

func (s *MemoryApplicationStore) GetByNumber(ctx context.Context, applicationNumber string) (*models.Application, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	for _, app := range s.t.records {
		if app.ApplicationNumber == applicationNumber {
			return app.Clone(), nil
		}
	}
	return nil, fmt.Errorf("application %s: %w", applicationNumber, ErrNotFound)
}

func (s *MemoryApplicationStore) ListByUser(ctx context.Context, userID int64) ([]models.Application, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	return s.t.sortedLocked(func(a *models.Application) bool { return a.UserID == userID }), nil
}

func (s *MemoryApplicationStore) Update(ctx context.Context, id int64, mutate func(*models.Application) error) (*models.Application, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	app, ok := s.t.getLocked(id)
	if !ok {
		return nil, fmt.Errorf("application %d: %w", id, ErrNotFound)
	}
	original := *app
	if err := mutate(app); err != nil {
		return nil, err
	}
	app.ID = id
	app.ApplicationNumber = original.ApplicationNumber
	app.UserID = original.UserID
	app.TotalAmount = original.TotalAmount
	if err := s.t.replaceLocked(id, app); err != nil {
		return nil, err
	}
	return app.Clone(), nil
}

func (s *MemoryApplicationStore) AnonymizeUser(ctx context.Context, userID int64) (int, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	previous := make(map[int64]*models.Application)
	now := time.Now().UTC()
	for id, app := range s.t.records {
		if app.UserID != userID {
			continue
		}
		previous[id] = app
		scrubbed := app.Clone()
		anonymize(scrubbed, now)
		s.t.records[id] = scrubbed
	}
	if len(previous) == 0 {
		return 0, nil
	}

	if err := s.t.persistLocked(); err != nil {
		for id, app := range previous {
			s.t.records[id] = app
		}
		return 0, err
	}
	return len(previous), nil
}

func anonymize(app *models.Application, now time.Time) {
	app.UserID = 0
	app.PANCard = ""
	app.DPID = ""
	app.ClientID = ""
	app.UPIID = ""
	app.BankAccount = ""
	app.UpdatedAt = now
}
