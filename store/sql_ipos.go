package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/jmoiron/sqlx"
)

const ipoColumns = `id, name, type, category, logo_url, description, open_date, close_date, listing_date,
	price_band, lot_size, face_value, issue_size, fresh_issue, offer_for_sale, exchange, company_info,
	subscription, gmp, created_at, updated_at`

type ipoRow struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	Type         string         `db:"type"`
	Category     string         `db:"category"`
	LogoURL      string         `db:"logo_url"`
	Description  string         `db:"description"`
	OpenDate     string         `db:"open_date"`
	CloseDate    string         `db:"close_date"`
	ListingDate  sql.NullString `db:"listing_date"`
	PriceBand    string         `db:"price_band"`
	LotSize      int            `db:"lot_size"`
	FaceValue    float64        `db:"face_value"`
	IssueSize    string         `db:"issue_size"`
	FreshIssue   string         `db:"fresh_issue"`
	OfferForSale string         `db:"offer_for_sale"`
	Exchange     string         `db:"exchange"`
	CompanyInfo  string         `db:"company_info"`
	Subscription sql.NullString `db:"subscription"`
	GMP          sql.NullString `db:"gmp"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func newIPORow(i *models.IPO) (*ipoRow, error) {
	subscription, err := jsonColumn(i.Subscription, i.Subscription == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscription: %w", err)
	}
	gmp, err := jsonColumn(i.GMP, i.GMP == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gmp: %w", err)
	}

	row := &ipoRow{
		ID:           i.ID,
		Name:         i.Name,
		Type:         i.Type,
		Category:     i.Category,
		LogoURL:      i.LogoURL,
		Description:  i.Description,
		OpenDate:     i.OpenDate,
		CloseDate:    i.CloseDate,
		PriceBand:    i.PriceBand,
		LotSize:      i.LotSize,
		FaceValue:    i.FaceValue,
		IssueSize:    i.IssueSize,
		FreshIssue:   i.FreshIssue,
		OfferForSale: i.OfferForSale,
		Exchange:     i.Exchange,
		CompanyInfo:  i.CompanyInfo,
		Subscription: subscription,
		GMP:          gmp,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
	if i.ListingDate != nil {
		row.ListingDate = sql.NullString{String: *i.ListingDate, Valid: true}
	}
	return row, nil
}

func (r *ipoRow) toModel() (*models.IPO, error) {
	subscription, err := decodeJSONColumn[models.Subscription](r.Subscription)
	if err != nil {
		return nil, fmt.Errorf("failed to decode subscription of ipo %d: %w", r.ID, err)
	}
	gmp, err := decodeJSONColumn[models.GMP](r.GMP)
	if err != nil {
		return nil, fmt.Errorf("failed to decode gmp of ipo %d: %w", r.ID, err)
	}

	ipo := &models.IPO{
		ID:           r.ID,
		Name:         r.Name,
		Type:         r.Type,
		Category:     r.Category,
		LogoURL:      r.LogoURL,
		Description:  r.Description,
		OpenDate:     r.OpenDate,
		CloseDate:    r.CloseDate,
		PriceBand:    r.PriceBand,
		LotSize:      r.LotSize,
		FaceValue:    r.FaceValue,
		IssueSize:    r.IssueSize,
		FreshIssue:   r.FreshIssue,
		OfferForSale: r.OfferForSale,
		Exchange:     r.Exchange,
		CompanyInfo:  r.CompanyInfo,
		Subscription: subscription,
		GMP:          gmp,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ListingDate.Valid {
		v := r.ListingDate.String
		ipo.ListingDate = &v
	}
	return ipo, nil
}

type SQLIPOStore struct {
	sqlBase
}

func (s *SQLIPOStore) Create(ctx context.Context, ipo *models.IPO) error {
	row, err := newIPORow(ipo)
	if err != nil {
		return err
	}

	query := s.db.Rebind(`INSERT INTO ipos (name, type, category, logo_url, description, open_date, close_date,
		listing_date, price_band, lot_size, face_value, issue_size, fresh_issue, offer_for_sale, exchange,
		company_info, subscription, gmp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err = s.db.QueryRowxContext(ctx, query,
		row.Name, row.Type, row.Category, row.LogoURL, row.Description, row.OpenDate, row.CloseDate,
		row.ListingDate, row.PriceBand, row.LotSize, row.FaceValue, row.IssueSize, row.FreshIssue,
		row.OfferForSale, row.Exchange, row.CompanyInfo, row.Subscription, row.GMP, row.CreatedAt, row.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert ipo: %w", err)
	}
	ipo.ID = id
	return nil
}

func (s *SQLIPOStore) GetByID(ctx context.Context, id int64) (*models.IPO, error) {
	var row ipoRow
	query := s.db.Rebind(`SELECT ` + ipoColumns + ` FROM ipos WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, notFoundOr(err, "ipo", id)
	}
	return row.toModel()
}

func (s *SQLIPOStore) List(ctx context.Context) ([]models.IPO, error) {
	var rows []ipoRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+ipoColumns+` FROM ipos ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list ipos: %w", err)
	}

	ipos := make([]models.IPO, 0, len(rows))
	for i := range rows {
		ipo, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		ipos = append(ipos, *ipo)
	}
	return ipos, nil
}

func (s *SQLIPOStore) Update(ctx context.Context, id int64, mutate func(*models.IPO) error) (*models.IPO, error) {
	var updated *models.IPO
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current ipoRow
		query := tx.Rebind(s.forUpdate(`SELECT ` + ipoColumns + ` FROM ipos WHERE id = ?`))
		if err := tx.GetContext(ctx, &current, query, id); err != nil {
			return notFoundOr(err, "ipo", id)
		}

		ipo, err := current.toModel()
		if err != nil {
			return err
		}
		if err := mutate(ipo); err != nil {
			return err
		}
		ipo.ID = id

		row, err := newIPORow(ipo)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, `UPDATE ipos SET name = :name, type = :type, category = :category,
			logo_url = :logo_url, description = :description, open_date = :open_date, close_date = :close_date,
			listing_date = :listing_date, price_band = :price_band, lot_size = :lot_size, face_value = :face_value,
			issue_size = :issue_size, fresh_issue = :fresh_issue, offer_for_sale = :offer_for_sale,
			exchange = :exchange, company_info = :company_info, subscription = :subscription, gmp = :gmp,
			updated_at = :updated_at WHERE id = :id`, row)
		if err != nil {
			return fmt.Errorf("failed to update ipo %d: %w", id, err)
		}
		updated = ipo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLIPOStore) Delete(ctx context.Context, id int64) (*models.IPO, error) {
	var deleted *models.IPO
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current ipoRow
		query := tx.Rebind(s.forUpdate(`SELECT ` + ipoColumns + ` FROM ipos WHERE id = ?`))
		if err := tx.GetContext(ctx, &current, query, id); err != nil {
			return notFoundOr(err, "ipo", id)
		}
		ipo, err := current.toModel()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM ipos WHERE id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete ipo %d: %w", id, err)
		}
		deleted = ipo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
