package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// TemplateRepositoryInterface defines methods used by services
type TemplateRepositoryInterface interface {
	GetByID(id int) (*model.Template, error)
	ListByAccount(accountID int) ([]model.Template, error)
	Create(t *model.Template) error
	UpdateProviderStatus(id int, providerID, providerStatus string) error
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) GetByID(id int) (*model.Template, error) {
	query := `
        SELECT id, account_id, name, language, body, provider_id, provider_status, created_at
        FROM templates
        WHERE id = $1
    `
	var t model.Template
	err := r.DB.QueryRow(query, id).Scan(
		&t.ID, &t.AccountID, &t.Name, &t.Language, &t.Body,
		&t.ProviderID, &t.ProviderStatus, &t.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) ListByAccount(accountID int) ([]model.Template, error) {
	query := `
        SELECT id, account_id, name, language, body, provider_id, provider_status, created_at
        FROM templates
        WHERE account_id = $1
        ORDER BY id
    `
	rows, err := r.DB.Query(query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.Language, &t.Body,
			&t.ProviderID, &t.ProviderStatus, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Create(t *model.Template) error {
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO templates (account_id, name, language, body, provider_id, provider_status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, t.AccountID, t.Name, t.Language, t.Body,
		t.ProviderID, t.ProviderStatus, t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) UpdateProviderStatus(id int, providerID, providerStatus string) error {
	query := `UPDATE templates SET provider_id=$1, provider_status=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, providerID, providerStatus, id)
	return err
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
