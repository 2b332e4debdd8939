package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/event-fanout/backend/internal/delivery"
	"github.com/anonto42/event-fanout/backend/internal/handlers"
	"github.com/anonto42/event-fanout/backend/internal/logging"
	"github.com/anonto42/event-fanout/backend/internal/notify"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/anonto42/event-fanout/backend/internal/router"
	"github.com/anonto42/event-fanout/backend/pkg/config"
	"github.com/anonto42/event-fanout/backend/pkg/firebase"
	"github.com/anonto42/event-fanout/backend/validators"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID, cfg.StoreBackend == config.StoreFirestore)
	if err != nil {
		return err
	}
	defer firebaseApp.Close()

	// --- Document store ---
	var store repositories.Store
	var mirror repositories.Mirror
	switch cfg.StoreBackend {
	case config.StoreMongo:
		store = repositories.NewMongoStore(db.Mongo, db.Mongo.Database(cfg.MongoDatabase))
	case config.StoreMemory:
		memory := repositories.NewMemoryStore()
		store, mirror = memory, memory
	default:
		store = repositories.NewFirestoreStore(firebaseApp.Firestore)
	}
	logger.Info("document store ready", "backend", cfg.StoreBackend)

	var deliveries repositories.DeliveryRepository
	if db.Postgres != nil {
		deliveries = repositories.NewPostgresDeliveryRepository(db.Postgres)
	}

	// --- Notification pipeline ---
	gateway := delivery.NewGateway(delivery.NewFCMTransport(firebaseApp.Messaging), store, store, deliveries, logger.With("component", "delivery"))
	messages := notify.Messages{BaseURL: cfg.BaseURL}
	tagIndex := notify.NewTagIndexMaintainer(store, store, store, logger.With("component", "tag_index"))
	lifecycle := notify.NewEventLifecycleNotifier(store, store, store, gateway, messages, logger.With("component", "event_lifecycle"))
	activity := notify.NewActivityNotifier(store, store, gateway, messages, logger.With("component", "activity"))

	// --- HTTP ---
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	router.SetupMiddleware(e)
	if cfg.HTTPEnabled() {
		router.SetupRoutes(e, router.Dependencies{
			Preferences:   tagIndex,
			Events:        lifecycle,
			Activity:      activity,
			Mirror:        mirror,
			Deliveries:    deliveries,
			AdminVerifier: firebaseApp.Auth,
			PushAudience:  cfg.PushAudience,
			Logger:        logger,
		})
	} else {
		e.GET("/health", handlers.HealthCheck)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.WatchEnabled() {
		for _, w := range newWatchers(firebaseApp.Firestore, tagIndex, lifecycle, activity, logger) {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	g.Go(func() error {
		logger.Info("http server listening", "port", cfg.Port, "trigger_mode", cfg.TriggerMode)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
