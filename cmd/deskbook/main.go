package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/config"
	httptransport "github.com/example/deskbook/internal/http"
	"github.com/example/deskbook/internal/logging"
	"github.com/example/deskbook/internal/persistence"
	"github.com/example/deskbook/internal/persistence/bookingstore"
	"github.com/example/deskbook/internal/persistence/memory"
	"github.com/example/deskbook/internal/persistence/postgres"
	"github.com/example/deskbook/internal/persistence/sqlite"
	"github.com/example/deskbook/internal/recurrence"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a bearer token for the given user id and exit")
	issueAdmin := flag.Bool("admin", false, "grant administrator rights to the issued token")
	issueTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the issued token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	if *issueFor != "" {
		token, err := httptransport.IssueToken([]byte(cfg.JWTSecret), application.Principal{UserID: *issueFor, IsAdmin: *issueAdmin}, *issueTTL, time.Now())
		if err != nil {
			logger.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := seedResources(ctx, store, cfg.Resources, time.Now); err != nil {
		logger.Error("failed to seed resources", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(cfg, store, time.Now, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("deskbook API listening", "addr", server.Addr, "driver", cfg.StorageDriver, "resources", len(cfg.Resources))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// openStore opens and migrates the configured storage driver.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return memory.Open(), nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, logger); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case config.DriverSQLite, "":
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, logger); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// seedResources upserts the configured desks so bookings can reference them.
func seedResources(ctx context.Context, store persistence.ResourceRepository, resources []config.Resource, now func() time.Time) error {
	for _, resource := range resources {
		if err := store.UpsertResource(ctx, persistence.Resource{
			ID:        resource.ID,
			Name:      resource.Name,
			CreatedAt: now().UTC(),
		}); err != nil {
			return fmt.Errorf("seed resource %s: %w", resource.ID, err)
		}
	}
	return nil
}

// newHandler wires services and transport over store.
func newHandler(cfg config.Config, store persistence.Store, now func() time.Time, logger *slog.Logger) http.Handler {
	repo := bookingstore.New(store)
	expander := recurrence.NewEngine(cfg.Location, cfg.MaxOccurrences)
	hours := application.WorkingHours{Location: cfg.Location, Start: cfg.DayStart, End: cfg.DayEnd}

	bookingService := application.NewBookingServiceWithLogger(repo, repo, expander, uuid.NewString, now, logger)
	availabilityService := application.NewAvailabilityServiceWithLogger(repo, repo, hours, logger)

	return httptransport.NewRouter(httptransport.RouterConfig{
		Bookings:     httptransport.NewBookingHandler(bookingService, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, cfg.Location, logger),
		Calendar:     httptransport.NewCalendarHandler(bookingService, now, logger),
		Auth:         httptransport.RequireBearer([]byte(cfg.JWTSecret), logger),
		Logger:       logger,
	})
}
