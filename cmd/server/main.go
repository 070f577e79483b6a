/**
 * @description
 * This is the main entry point for the settlement service. It initializes
 * configuration, the database pool, the message broker producer, the chain
 * RPC client and the HTTP server, wires everything together and runs until
 * signalled.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/afan2g/tacto-backend/internal/api"
	"github.com/afan2g/tacto-backend/internal/app"
	"github.com/afan2g/tacto-backend/internal/config"
	"github.com/afan2g/tacto-backend/internal/store"
	"github.com/afan2g/tacto-backend/pkg/chainclient"
	"github.com/afan2g/tacto-backend/pkg/rabbitmq"
)

func main() {
	// A missing .env file is fine in deployed environments.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.WebhookSigningKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"webhook signing key must be configured\" env=WEBHOOK_SIGNING_KEY")
	}
	if strings.TrimSpace(cfg.TokenAddress) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"settlement token address must be configured\" env=TOKEN_ADDRESS")
	}

	log.Printf("level=info component=bootstrap msg=\"starting settlement service\" port=%s chain_id=%d", cfg.ServerPort, cfg.ChainID)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// The notification dispatcher consumes from the broker; when the broker
	// is down at boot we degrade to dropping notifications rather than
	// refusing to settle payments.
	var producer rabbitmq.Publisher
	if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq unavailable; notifications degraded\" err=%v", err)
		producer = &rabbitmq.NoopProducer{}
	} else {
		producer = p
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer producer.Close()

	var replay api.ReplayGuard
	if strings.TrimSpace(cfg.RedisURL) != "" {
		if opts, err := redis.ParseURL(cfg.RedisURL); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory replay guard\" err=%v", err)
		} else {
			client := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := client.Ping(pingCtx).Err(); err != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory replay guard\" err=%v", err)
				client.Close()
			} else {
				defer client.Close()
				replay = api.NewRedisReplayGuard(client, "")
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
			cancel()
		}
	}

	chain := chainclient.New(cfg.ChainRPCURL, cfg.ChainID, cfg.TokenAddress)
	repository := store.NewPostgresRepository(dbpool)

	notifier := app.NewNotifier(producer, cfg.NotifyQueueSize, cfg.NotifyMaxAttempts)
	notifier.Start(context.Background())
	defer notifier.Close()

	service := app.NewService(repository, chain, notifier, cfg.TokenSymbol, cfg.ReminderMinHours)
	reconciler := app.NewReconciler(repository, notifier, cfg.FeeCollectorAddress, cfg.TokenSymbol)

	handlers := api.NewHandlers(service, reconciler)
	webhook := api.NewWebhookHandler(reconciler, cfg.WebhookSigningKey, replay)
	router := api.Routes(handlers, webhook, cfg.JWKSURL)

	// Background sweep: expire stale pending requests and settle pending
	// transactions whose webhook never arrived.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				n, err := service.ExpireStaleRequests(sweepCtx, time.Duration(cfg.RequestExpiryDays)*24*time.Hour)
				if err != nil {
					log.Printf("level=error component=sweeper msg=\"expiry sweep failed\" err=%v", err)
				} else if n > 0 {
					log.Printf("level=info component=sweeper msg=\"expired stale requests\" count=%d", n)
				}

				settled, err := service.ReconcileStaleTransactions(sweepCtx, time.Hour, 100)
				if err != nil {
					log.Printf("level=error component=sweeper msg=\"stale transaction sweep failed\" err=%v", err)
				} else if settled > 0 {
					log.Printf("level=info component=sweeper msg=\"settled stale transactions\" count=%d", settled)
				}
			}
		}
	}()

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=http msg=\"shutdown complete\"")
}
