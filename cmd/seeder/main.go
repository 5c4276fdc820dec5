package main

import (
	"fmt"
	"log"

	"github.com/unclebandit/wablast-backend/internal/config"
	"github.com/unclebandit/wablast-backend/internal/db"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// Seeds a couple of accounts, templates and contacts for local development.
func main() {
	cfg := config.Load()

	conn, err := db.Connect(cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}

	for i := 1; i <= 2; i++ {
		var accountID int
		err := conn.QueryRow(`
            INSERT INTO accounts (name, phone_number_id, business_id, access_token, status, created_at)
            VALUES ($1, $2, $3, $4, 'connected', NOW())
            RETURNING id
        `, fmt.Sprintf("Dev Account %d", i), fmt.Sprintf("10000%d", i), fmt.Sprintf("20000%d", i), "dev-token").Scan(&accountID)
		if err != nil {
			log.Fatal("failed to seed account:", err)
		}

		templateRepo := &repository.TemplateRepository{DB: conn}
		tpl := &model.Template{
			AccountID:      accountID,
			Name:           fmt.Sprintf("welcome_offer_%d", i),
			Language:       "en",
			Body:           "Hi {first_name}, we have a new offer for you in {location}!",
			ProviderStatus: "approved",
		}
		if err := templateRepo.Create(tpl); err != nil {
			log.Fatal("failed to seed template:", err)
		}
	}

	contacts := []model.Contact{
		{Phone: "254700000001", FirstName: "Alice", LastName: "Smith", Location: "Nairobi"},
		{Phone: "254700000002", FirstName: "Bob", LastName: "Jones", Location: "Mombasa"},
		{Phone: "254700000003", FirstName: "Carol", LastName: "Okoth", Location: "Kisumu"},
	}
	for _, c := range contacts {
		if _, err := conn.Exec(`
            INSERT INTO contacts (phone, first_name, last_name, location, tags)
            VALUES ($1, $2, $3, $4, '')
        `, c.Phone, c.FirstName, c.LastName, c.Location); err != nil {
			log.Fatal("failed to seed contact:", err)
		}
	}

	log.Println("✅ Seeded 2 accounts, 2 templates, 3 contacts")
}
