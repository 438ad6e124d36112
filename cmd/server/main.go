package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/pkg/logger"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	configPath := os.Getenv("INVOICEDESK_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	if cfg.Auth.JWTSecret == "" {
		slog.Error("auth.jwt_secret is empty; set it in the config or INVOICEDESK_JWT_SECRET")
		os.Exit(1)
	}

	slog.Info("configuration loaded successfully", "path", configPath, "users", len(cfg.Users))

	app := newApp(cfg)

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(app)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	// Stop the tracker first so open progress streams end and no task
	// finishes into a store that is going away
	app.tracker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully",
		"invoices", app.invoices.Count(),
		"unfinished_uploads", app.tracker.ActiveCount(""),
	)
}

// app holds the long-lived services behind the HTTP surface
type app struct {
	cfg        *config.Config
	accounts   *service.AccountService
	invoices   *service.InvoiceStore
	categories *service.CategoryStore
	tracker    *service.UploadTracker
	reports    *service.ReportService
}

func newApp(cfg *config.Config) *app {
	a := &app{
		cfg:        cfg,
		accounts:   service.NewAccountService(cfg),
		invoices:   service.NewInvoiceStore(&cfg.Store),
		categories: service.NewCategoryStore(),
	}

	opts := service.TrackerOptionsFromConfig(&cfg.Upload)
	opts.OnFinish = a.recordInvoice
	a.tracker = service.NewUploadTracker(opts)
	a.reports = service.NewReportService(a.invoices, a.tracker)
	return a
}

// recordInvoice turns a finished upload into an invoice. Failed uploads are
// kept too so the dashboard's success rate counts them.
func (a *app) recordInvoice(task *model.UploadTask) {
	category := ""
	if task.Result != nil {
		category = a.categories.Classify(task.Result)
	}
	inv := service.InvoiceFromTask(task, category)
	a.invoices.Save(inv)
	slog.Info("invoice recorded", "invoice_id", inv.ID, "status", inv.Status, "category", category)
}
