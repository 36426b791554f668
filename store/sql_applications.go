package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/jmoiron/sqlx"
)

const applicationColumns = `id, application_number, user_id, ipo_id, ipo_name, category, bid_price, quantity,
	total_amount, pan_card, dp_id, client_id, upi_id, bank_account, status, allotment_status,
	shares_allotted, payment_status, applied_at, updated_at`

type applicationRow struct {
	ID                int64          `db:"id"`
	ApplicationNumber string         `db:"application_number"`
	UserID            int64          `db:"user_id"`
	IPOID             int64          `db:"ipo_id"`
	IPOName           string         `db:"ipo_name"`
	Category          string         `db:"category"`
	BidPrice          float64        `db:"bid_price"`
	Quantity          int            `db:"quantity"`
	TotalAmount       float64        `db:"total_amount"`
	PANCard           string         `db:"pan_card"`
	DPID              string         `db:"dp_id"`
	ClientID          string         `db:"client_id"`
	UPIID             string         `db:"upi_id"`
	BankAccount       string         `db:"bank_account"`
	Status            string         `db:"status"`
	AllotmentStatus   sql.NullString `db:"allotment_status"`
	SharesAllotted    int            `db:"shares_allotted"`
	PaymentStatus     string         `db:"payment_status"`
	AppliedAt         time.Time      `db:"applied_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func newApplicationRow(a *models.Application) *applicationRow {
	row := &applicationRow{
		ID:                a.ID,
		ApplicationNumber: a.ApplicationNumber,
		UserID:            a.UserID,
		IPOID:             a.IPOID,
		IPOName:           a.IPOName,
		Category:          string(a.Category),
		BidPrice:          a.BidPrice,
		Quantity:          a.Quantity,
		TotalAmount:       a.TotalAmount,
		PANCard:           a.PANCard,
		DPID:              a.DPID,
		ClientID:          a.ClientID,
		UPIID:             a.UPIID,
		BankAccount:       a.BankAccount,
		Status:            string(a.Status),
		SharesAllotted:    a.SharesAllotted,
		PaymentStatus:     string(a.PaymentStatus),
		AppliedAt:         a.AppliedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.AllotmentStatus != nil {
		row.AllotmentStatus = sql.NullString{String: string(*a.AllotmentStatus), Valid: true}
	}
	return row
}

func (r *applicationRow) toModel() *models.Application {
	app := &models.Application{
		ID:                r.ID,
		ApplicationNumber: r.ApplicationNumber,
		UserID:            r.UserID,
		IPOID:             r.IPOID,
		IPOName:           r.IPOName,
		Category:          models.Category(r.Category),
		BidPrice:          r.BidPrice,
		Quantity:          r.Quantity,
		TotalAmount:       r.TotalAmount,
		PANCard:           r.PANCard,
		DPID:              r.DPID,
		ClientID:          r.ClientID,
		UPIID:             r.UPIID,
		BankAccount:       r.BankAccount,
		Status:            models.ApplicationStatus(r.Status),
		SharesAllotted:    r.SharesAllotted,
		PaymentStatus:     models.PaymentStatus(r.PaymentStatus),
		AppliedAt:         r.AppliedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.AllotmentStatus.Valid {
		status := models.AllotmentStatus(r.AllotmentStatus.String)
		app.AllotmentStatus = &status
	}
	return app
}

type SQLApplicationStore struct {
	sqlBase
}

func (s *SQLApplicationStore) Create(ctx context.Context, app *models.Application) error {
	row := newApplicationRow(app)
	query := s.db.Rebind(`INSERT INTO applications (application_number, user_id, ipo_id, ipo_name, category,
		bid_price, quantity, total_amount, pan_card, dp_id, client_id, upi_id, bank_account, status,
		allotment_status, shares_allotted, payment_status, applied_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		row.ApplicationNumber, row.UserID, row.IPOID, row.IPOName, row.Category, row.BidPrice, row.Quantity,
		row.TotalAmount, row.PANCard, row.DPID, row.ClientID, row.UPIID, row.BankAccount, row.Status,
		row.AllotmentStatus, row.SharesAllotted, row.PaymentStatus, row.AppliedAt, row.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", classifyConstraint(err))
	}
	app.ID = id
	return nil
}

func (s *SQLApplicationStore) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	var row applicationRow
	query := s.db.Rebind(`SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, notFoundOr(err, "application", id)
	}
	return row.toModel(), nil
}

func (s *SQLApplicationStore) GetByNumber(ctx context.Context, applicationNumber string) (*models.Application, error) {
	var row applicationRow
	query := s.db.Rebind(`SELECT ` + applicationColumns + ` FROM applications WHERE application_number = ?`)
	if err := s.db.GetContext(ctx, &row, query, applicationNumber); err != nil {
		return nil, notFoundOr(err, "application", applicationNumber)
	}
	return row.toModel(), nil
}

func (s *SQLApplicationStore) ListByUser(ctx context.Context, userID int64) ([]models.Application, error) {
	var rows []applicationRow
	query := s.db.Rebind(`SELECT ` + applicationColumns + ` FROM applications WHERE user_id = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list applications of user %d: %w", userID, err)
	}

	apps := make([]models.Application, 0, len(rows))
	for i := range rows {
		apps = append(apps, *rows[i].toModel())
	}
	return apps, nil
}

// Update never rewrites id, application_number, user_id or total_amount.
func (s *SQLApplicationStore) Update(ctx context.Context, id int64, mutate func(*models.Application) error) (*models.Application, error) {
	var updated *models.Application
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current applicationRow
		query := tx.Rebind(s.forUpdate(`SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`))
		if err := tx.GetContext(ctx, &current, query, id); err != nil {
			return notFoundOr(err, "application", id)
		}

		app := current.toModel()
		if err := mutate(app); err != nil {
			return err
		}
		app.ID = id
		app.ApplicationNumber = current.ApplicationNumber
		app.UserID = current.UserID
		app.TotalAmount = current.TotalAmount

		_, err := tx.NamedExecContext(ctx, `UPDATE applications SET ipo_id = :ipo_id, ipo_name = :ipo_name,
			category = :category, bid_price = :bid_price, quantity = :quantity, pan_card = :pan_card,
			dp_id = :dp_id, client_id = :client_id, upi_id = :upi_id, bank_account = :bank_account,
			status = :status, allotment_status = :allotment_status, shares_allotted = :shares_allotted,
			payment_status = :payment_status, updated_at = :updated_at WHERE id = :id`, newApplicationRow(app))
		if err != nil {
			return fmt.Errorf("failed to update application %d: %w", id, classifyConstraint(err))
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLApplicationStore) AnonymizeUser(ctx context.Context, userID int64) (int, error) {
	query := s.db.Rebind(`UPDATE applications SET user_id = 0, pan_card = '', dp_id = '', client_id = '',
		upi_id = '', bank_account = '', updated_at = ? WHERE user_id = ?`)
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to anonymize applications of user %d: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to anonymize applications of user %d: %w", userID, err)
	}
	return int(affected), nil
}
