// internal/model/contact.go
package model

type Contact struct {
	ID        int    `db:"id" json:"id"`
	Phone     string `db:"phone" json:"phone"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Location  string `db:"location" json:"location"`
	Tags      string `db:"tags" json:"tags"`
}
