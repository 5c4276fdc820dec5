package repository

import (
	"database/sql"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/model"
)

// AccountRepositoryInterface defines methods used by services
type AccountRepositoryInterface interface {
	GetByID(id int) (*model.Account, error)
	ListAll() ([]model.Account, error)
	UpdateStatus(id int, status string) error
}

type AccountRepository struct {
	DB *sql.DB
}

// GetByID fetches an account by ID. A missing account is a configuration
// error, so it is returned as a typed not-found rather than (nil, nil).
func (r *AccountRepository) GetByID(id int) (*model.Account, error) {
	query := `
        SELECT id, name, phone_number_id, business_id, access_token, status, created_at, updated_at
        FROM accounts
        WHERE id = $1
    `
	var a model.Account
	err := r.DB.QueryRow(query, id).Scan(
		&a.ID, &a.Name, &a.PhoneNumberID, &a.BusinessID,
		&a.AccessToken, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewAccountNotFound(id)
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) ListAll() ([]model.Account, error) {
	query := `
        SELECT id, name, phone_number_id, business_id, access_token, status, created_at, updated_at
        FROM accounts
        ORDER BY id
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.PhoneNumberID, &a.BusinessID,
			&a.AccessToken, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) UpdateStatus(id int, status string) error {
	query := `UPDATE accounts SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

var _ AccountRepositoryInterface = (*AccountRepository)(nil)
