package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// sqlBase holds what the three SQL stores share: the handle and the row-lock suffix.
type sqlBase struct {
	db *sqlx.DB
}

// forUpdate appends a row lock on postgres; SQLite serializes writers on its own.
func (b sqlBase) forUpdate(query string) string {
	if b.db.DriverName() == "postgres" {
		return query + " FOR UPDATE"
	}
	return query
}

func (b sqlBase) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logrus.WithError(rbErr).Warn("Transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// NewSQLStores wires the SQL-backed stores onto an open, migrated connection.
func NewSQLStores(db *sqlx.DB) *Stores {
	base := sqlBase{db: db}
	return &Stores{
		Users:        &SQLUserStore{sqlBase: base},
		IPOs:         &SQLIPOStore{sqlBase: base},
		Applications: &SQLApplicationStore{sqlBase: base},
		closer:       db.Close,
	}
}

// classifyConstraint maps unique violations from either driver onto the store sentinels.
func classifyConstraint(err error) error {
	if err == nil {
		return nil
	}

	var detail string
	var pqErr *pq.Error
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		detail = pqErr.Constraint
	case errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		detail = liteErr.Error()
	default:
		return err
	}

	switch {
	case strings.Contains(detail, "email"):
		return fmt.Errorf("%w: %v", ErrDuplicateEmail, err)
	case strings.Contains(detail, "application_number"):
		return fmt.Errorf("%w: %v", ErrDuplicateApplicationNumber, err)
	case strings.Contains(detail, "user_id"):
		return fmt.Errorf("%w: %v", ErrDuplicateApplication, err)
	}
	return err
}

func notFoundOr(err error, what string, id interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %v: %w", what, id, err)
}

// jsonColumn encodes v for a nullable TEXT column; nil pointers become NULL.
func jsonColumn(v interface{}, isNil bool) (sql.NullString, error) {
	if isNil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeJSONColumn[T any](col sql.NullString) (*T, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return nil, err
	}
	return &v, nil
}
