package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pet-monitor/tracker/internal/bus"
	"pet-monitor/tracker/internal/config"
	"pet-monitor/tracker/internal/notify"
	"pet-monitor/tracker/internal/pipeline"
	"pet-monitor/tracker/internal/presence"
	"pet-monitor/tracker/internal/registry"
	"pet-monitor/tracker/internal/store"
	transport "pet-monitor/tracker/internal/transport/http"
	"pet-monitor/tracker/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable store and hot-state cache.
	db, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	hot, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer hot.Close()

	// Fusion collaborators.
	resolver := registry.NewResolver(db, time.Duration(cfg.ResolverCacheTTLSeconds)*time.Second)
	estimator := presence.NewEstimator(
		cfg.DetectionRSSIThreshold,
		time.Duration(cfg.EventCooldownSeconds)*time.Second,
	)

	sender := notify.NewTelegramSender(cfg.TelegramBotToken, hot)
	aggregator := notify.NewAggregator(
		time.Duration(cfg.NotifyDebounceSeconds*float64(time.Second)),
		time.Duration(cfg.NotificationCooldownSeconds)*time.Second,
		sender,
	)

	dispatcher := pipeline.NewDispatcher(cfg.DBChannelSize, cfg.StateChannelSize, cfg.AlertChannelSize)
	bridge := bus.NewBridge(estimator, db, hot, resolver, dispatcher)
	hub := ws.NewHub(bridge)

	// Worker pools draining the dispatcher channels.
	var wg sync.WaitGroup
	for i := 0; i < cfg.DBWriterWorkers; i++ {
		w := pipeline.NewDBWriter(dispatcher.DBChan, db, cfg.DBBatchSize, cfg.DBFlushIntervalMS)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	for i := 0; i < cfg.StateWriterWorkers; i++ {
		w := pipeline.NewStateWriter(dispatcher.StateChan, hot, hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	for i := 0; i < cfg.AlertWorkers; i++ {
		w := pipeline.NewAlertWorker(dispatcher.AlertChan, aggregator)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	// Broker consumer.
	consumer := bus.NewConsumer(cfg.BrokerURL, cfg.TopicPrefix, bridge)
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("mqtt: %v", err)
	}

	// HTTP surface.
	api := transport.NewServer(cfg, db, hot, hub, sender)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}
	go func() {
		log.Printf("[http] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("[trackerd] running (broker=%s prefix=%s)", cfg.BrokerURL, cfg.TopicPrefix)

	<-ctx.Done()
	log.Println("[trackerd] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[http] shutdown: %v", err)
	}

	wg.Wait()
	log.Println("[trackerd] stopped")
}
