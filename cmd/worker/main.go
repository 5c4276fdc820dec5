package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/wablast-backend/internal/config"
	"github.com/unclebandit/wablast-backend/internal/db"
	"github.com/unclebandit/wablast-backend/internal/events"
	"github.com/unclebandit/wablast-backend/internal/gateway"
	"github.com/unclebandit/wablast-backend/internal/queue"
	"github.com/unclebandit/wablast-backend/internal/repository"
	"github.com/unclebandit/wablast-backend/internal/service"
)

func main() {
	cfg := config.Load()

	conn, err := db.Connect(cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}
	log.Println("✅ Connected to database")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

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

	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayTimeout)
	health := &service.HealthEvaluator{Gateway: gw, Cache: redisClient}

	worker := &service.DispatchWorker{
		Accounts:    accountRepo,
		Campaigns:   campaignRepo,
		Rotation:    rotationRepo,
		Messages:    messageRepo,
		Templates:   templateRepo,
		Gateway:     gw,
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
		Health:    health,
		Events:    events.NewRedisPublisher(redisClient),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down worker...")
		cancel()
	}()

	// Out-of-band health sweep: remove confirmed-bad accounts from running
	// rotations without stopping the campaigns.
	go func() {
		tick := time.NewTicker(cfg.HealthSweepTick)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				campaignService.SweepRunningCampaigns(ctx)
			}
		}
	}()

	log.Println("Worker running, waiting for jobs...")
	if err := jobs.Consume(ctx, worker.Process); err != nil && err != context.Canceled {
		log.Fatal("consumer stopped:", err)
	}
}
