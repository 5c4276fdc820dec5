package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/wablast-backend/internal/config"
	"github.com/unclebandit/wablast-backend/internal/db"
	"github.com/unclebandit/wablast-backend/internal/events"
	"github.com/unclebandit/wablast-backend/internal/gateway"
	"github.com/unclebandit/wablast-backend/internal/handler"
	"github.com/unclebandit/wablast-backend/internal/queue"
	"github.com/unclebandit/wablast-backend/internal/repository"
	"github.com/unclebandit/wablast-backend/internal/service"
	"github.com/unclebandit/wablast-backend/internal/taskqueue"
)

func main() {
	cfg := config.Load()

	conn, err := db.Connect(cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}
	log.Println("✅ Connected to database")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	publisher := events.NewRedisPublisher(redisClient)

	jobs, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.WorkerPrefetch, cfg.BackoffBase)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer jobs.Close()

	accountRepo := &repository.AccountRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	rotationRepo := &repository.CampaignAccountRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}
	historyRepo := &repository.QueueHistoryRepository{DB: conn}

	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayTimeout)

	health := &service.HealthEvaluator{Gateway: gw, Cache: redisClient}

	expander := &service.Expander{
		Messages:    messageRepo,
		Jobs:        jobs,
		MaxAttempts: cfg.JobMaxAttempts,
	}

	campaignService := &service.CampaignService{
		Campaigns: campaignRepo,
		Contacts:  contactRepo,
		Accounts:  accountRepo,
		Templates: templateRepo,
		Rotation:  rotationRepo,
		Messages:  messageRepo,
		Expander:  expander,
		Health:    health,
		Events:    publisher,
	}

	templateQueue := taskqueue.New("templates",
		&taskqueue.TemplateExecutor{Gateway: gw, Accounts: accountRepo, Templates: templateRepo},
		historyRepo, publisher, cfg.QueueDrainInterval)
	profileQueue := taskqueue.New("profiles",
		&taskqueue.ProfileExecutor{Gateway: gw, Accounts: accountRepo},
		historyRepo, publisher, cfg.QueueDrainInterval)

	campaignHandler := handler.NewCampaignHandler(campaignService)
	queueHandler := handler.NewQueueHandler(templateQueue, profileQueue)

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignHandler.CreateCampaign)
	r.Get("/campaigns", campaignHandler.ListCampaigns)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaign)
	r.Post("/campaigns/{id}/start", campaignHandler.StartCampaign)
	r.Post("/campaigns/{id}/pause", campaignHandler.PauseCampaign)
	r.Post("/campaigns/{id}/resume", campaignHandler.ResumeCampaign)
	r.Post("/campaigns/{id}/cancel", campaignHandler.CancelCampaign)
	r.Post("/campaigns/{id}/sweep-accounts", campaignHandler.SweepCampaign)
	r.Post("/preview", campaignHandler.Preview)
	r.Post("/messages/send", campaignHandler.SendAdHoc)
	r.Post("/messages/status-callback", campaignHandler.StatusCallback)

	// Sequential mutation queues
	r.Post("/queues/templates/operations", queueHandler.EnqueueTemplateOp)
	r.Post("/queues/profiles/operations", queueHandler.EnqueueProfileOp)
	r.Get("/queues/{queue}/status", queueHandler.QueueStatus)
	r.Post("/queues/{queue}/cancel-pending", queueHandler.CancelPending)
	r.Post("/queues/{queue}/retry/{historyID}", queueHandler.RetryFailedItem)
	r.Post("/queues/{queue}/retry-all", queueHandler.RetryAllFailures)

	log.Println("🚀 Server running on", cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
