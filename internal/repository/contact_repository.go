package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by services
type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	ListByIDs(ids []int) ([]model.Contact, error)
	ListAll() ([]model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

// GetByID fetches a contact by ID
func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `
        SELECT id, phone, first_name, last_name, location, tags
        FROM contacts
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.Location, &c.Tags); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// ListByIDs fetches the given contacts, preserving the requested order.
func (r *ContactRepository) ListByIDs(ids []int) ([]model.Contact, error) {
	if len(ids) == 0 {
		return []model.Contact{}, nil
	}

	query := `
        SELECT id, phone, first_name, last_name, location, tags
        FROM contacts
        WHERE id = ANY($1)
    `
	rows, err := r.DB.Query(query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[int]model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.Location, &c.Tags); err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	contacts := []model.Contact{}
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}

// ListAll fetches all contacts (used when a campaign targets everyone)
func (r *ContactRepository) ListAll() ([]model.Contact, error) {
	query := `
        SELECT id, phone, first_name, last_name, location, tags
        FROM contacts
        ORDER BY id
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.Location, &c.Tags); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
