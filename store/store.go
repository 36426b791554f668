// Package store persists users, IPO listings and applications behind keyed CRUD
// interfaces. Every Update is a serialized read-modify-write: the mutate callback sees
// a private copy and its changes are committed only when it returns nil.
package store

import (
	"context"
	"errors"

	"github.com/fenilmodi00/ipo-tracker/models"
)

var (
	ErrNotFound                   = errors.New("record not found")
	ErrDuplicateEmail             = errors.New("email already registered")
	ErrDuplicateApplication       = errors.New("application already exists for user and IPO")
	ErrDuplicateApplicationNumber = errors.New("application number already in use")
)

type UserStore interface {
	// Create assigns the next id to u. Fails with ErrDuplicateEmail on an exact email match.
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id int64, mutate func(*models.User) error) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

type IPOStore interface {
	Create(ctx context.Context, ipo *models.IPO) error
	GetByID(ctx context.Context, id int64) (*models.IPO, error)
	List(ctx context.Context) ([]models.IPO, error)
	Update(ctx context.Context, id int64, mutate func(*models.IPO) error) (*models.IPO, error)
	Delete(ctx context.Context, id int64) (*models.IPO, error)
}

type ApplicationStore interface {
	// Create enforces one application per (user, IPO) and unique application numbers.
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	GetByNumber(ctx context.Context, applicationNumber string) (*models.Application, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Application, error)
	Update(ctx context.Context, id int64, mutate func(*models.Application) error) (*models.Application, error)
	// AnonymizeUser detaches every application of userID and clears its identity documents.
	AnonymizeUser(ctx context.Context, userID int64) (int, error)
}

// Stores bundles the three stores a running service needs.
type Stores struct {
	Users        UserStore
	IPOs         IPOStore
	Applications ApplicationStore
	closer       func() error
}

func (s *Stores) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}
