package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/s/enrollmentService/internal/clients"
	"github.com/s/enrollmentService/internal/config"
	"github.com/s/enrollmentService/internal/database"
	"github.com/s/enrollmentService/internal/enrollment"
	"github.com/s/enrollmentService/internal/handlers"
	"github.com/s/enrollmentService/internal/middleware"
	"github.com/s/enrollmentService/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("enrollment service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------
	// 0. Configuration and logging
	// ---------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// ---------------------------
	// 1. Database and migrations
	// ---------------------------
	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	// ---------------------------
	// 2. Collaborators and workflow
	// ---------------------------
	httpClient := clients.NewHTTPClient(context.Background(), clients.Options{
		Timeout:      cfg.UpstreamTimeout,
		ClientID:     cfg.UpstreamClientID,
		ClientSecret: cfg.UpstreamClientSecret,
		TokenURL:     cfg.UpstreamTokenURL,
		Scopes:       cfg.UpstreamScopes,
	})
	directory := clients.NewDirectoryClient(cfg.DirectoryBaseURL, httpClient, logger)
	catalog := clients.NewCatalogClient(cfg.CatalogBaseURL, httpClient, logger)

	syncLog := storage.NewSyncLogStore(db)
	svc := enrollment.NewService(storage.NewEnrollmentStore(db), directory, catalog, syncLog, logger)

	// ---------------------------
	// 3. Routing
	// ---------------------------
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	handlers.NewHandler(svc, syncLog, db, logger).RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ---------------------------
	// 4. Serve until SIGINT/SIGTERM
	// ---------------------------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", "addr", srv.Addr,
			"directory", cfg.DirectoryBaseURL, "catalog", cfg.CatalogBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
