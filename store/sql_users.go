package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, name, email, password_hash, role, phone, pan_card, bank_account, upi_id,
	demat_account, applied_ipos, created_at, updated_at`

type userRow struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Role         string         `db:"role"`
	Phone        string         `db:"phone"`
	PANCard      string         `db:"pan_card"`
	BankAccount  sql.NullString `db:"bank_account"`
	UPIID        sql.NullString `db:"upi_id"`
	DematAccount sql.NullString `db:"demat_account"`
	AppliedIPOs  string         `db:"applied_ipos"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func newUserRow(u *models.User) (*userRow, error) {
	bank, err := jsonColumn(u.BankAccount, u.BankAccount == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bank account: %w", err)
	}
	demat, err := jsonColumn(u.DematAccount, u.DematAccount == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode demat account: %w", err)
	}
	applied := u.AppliedIPOs
	if applied == nil {
		applied = []models.AppliedIPORef{}
	}
	appliedRaw, err := json.Marshal(applied)
	if err != nil {
		return nil, fmt.Errorf("failed to encode applied IPOs: %w", err)
	}

	row := &userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Phone:        u.Phone,
		PANCard:      u.PANCard,
		BankAccount:  bank,
		DematAccount: demat,
		AppliedIPOs:  string(appliedRaw),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.UPIID != nil {
		row.UPIID = sql.NullString{String: *u.UPIID, Valid: true}
	}
	return row, nil
}

func (r *userRow) toModel() (*models.User, error) {
	bank, err := decodeJSONColumn[models.BankAccount](r.BankAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bank account of user %d: %w", r.ID, err)
	}
	demat, err := decodeJSONColumn[models.DematAccount](r.DematAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to decode demat account of user %d: %w", r.ID, err)
	}
	applied := []models.AppliedIPORef{}
	if r.AppliedIPOs != "" {
		if err := json.Unmarshal([]byte(r.AppliedIPOs), &applied); err != nil {
			return nil, fmt.Errorf("failed to decode applied IPOs of user %d: %w", r.ID, err)
		}
	}

	u := &models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		Phone:        r.Phone,
		PANCard:      r.PANCard,
		BankAccount:  bank,
		DematAccount: demat,
		AppliedIPOs:  applied,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.UPIID.Valid {
		v := r.UPIID.String
		u.UPIID = &v
	}
	return u, nil
}

type SQLUserStore struct {
	sqlBase
}

func (s *SQLUserStore) Create(ctx context.Context, u *models.User) error {
	row, err := newUserRow(u)
	if err != nil {
		return err
	}

	query := s.db.Rebind(`INSERT INTO users (name, email, password_hash, role, phone, pan_card, bank_account,
		upi_id, demat_account, applied_ipos, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err = s.db.QueryRowxContext(ctx, query,
		row.Name, row.Email, row.PasswordHash, row.Role, row.Phone, row.PANCard, row.BankAccount,
		row.UPIID, row.DematAccount, row.AppliedIPOs, row.CreatedAt, row.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", classifyConstraint(err))
	}
	u.ID = id
	return nil
}

func (s *SQLUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return row.toModel()
}

func (s *SQLUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	if err := s.db.GetContext(ctx, &row, query, email); err != nil {
		return nil, notFoundOr(err, "user", email)
	}
	return row.toModel()
}

func (s *SQLUserStore) List(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]models.User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

func (s *SQLUserStore) Update(ctx context.Context, id int64, mutate func(*models.User) error) (*models.User, error) {
	var updated *models.User
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current userRow
		query := tx.Rebind(s.forUpdate(`SELECT ` + userColumns + ` FROM users WHERE id = ?`))
		if err := tx.GetContext(ctx, &current, query, id); err != nil {
			return notFoundOr(err, "user", id)
		}

		u, err := current.toModel()
		if err != nil {
			return err
		}
		if err := mutate(u); err != nil {
			return err
		}
		u.ID = id

		row, err := newUserRow(u)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, `UPDATE users SET name = :name, email = :email,
			password_hash = :password_hash, role = :role, phone = :phone, pan_card = :pan_card,
			bank_account = :bank_account, upi_id = :upi_id, demat_account = :demat_account,
			applied_ipos = :applied_ipos, updated_at = :updated_at WHERE id = :id`, row)
		if err != nil {
			return fmt.Errorf("failed to update user %d: %w", id, classifyConstraint(err))
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLUserStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}
