package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/invoicedesk/handler"
	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	invoiceRoles = []model.Role{model.RoleUploader, model.RoleAccountant, model.RoleAdmin}
	reportRoles  = []model.Role{model.RoleAccountant, model.RoleAdmin}
)

func newRouter(a *app) *gin.Engine {
	cfg := a.cfg

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg, a.accounts)
	uploadHandler := handler.NewUploadHandler(a.tracker, &cfg.Upload)
	streamHandler := handler.NewStreamHandler(a.tracker, cfg.CORS.AllowOrigins)
	invoiceHandler := handler.NewInvoiceHandler(a.invoices)
	dashboardHandler := handler.NewDashboardHandler(a.reports)
	reportHandler := handler.NewReportHandler(a.reports)
	categoryHandler := handler.NewCategoryHandler(a.categories)

	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                                  // Request ID for tracing
	router.Use(middleware.Recovery())                                   // Panic recovery
	router.Use(middleware.RequestLogger("/health", cfg.Metrics.Path))   // Access logging
	router.Use(corsMiddleware(cfg.CORS.AllowOrigins))                   // CORS
	router.Use(noCacheMiddleware())                                     // Cache control
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute)) // Rate limiting per client
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics())
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	api.POST("/auth/login", authHandler.Login)

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/auth/verify", authHandler.Verify)
		protected.POST("/auth/refresh", authHandler.Refresh)
		protected.GET("/dashboard/summary", dashboardHandler.Summary)
	}

	uploads := protected.Group("/uploads", middleware.RequireRoles(invoiceRoles...))
	{
		uploads.POST("", uploadHandler.Upload)
		uploads.GET("", uploadHandler.List)
		uploads.GET("/stream", streamHandler.Stream)
		uploads.GET("/:id", uploadHandler.Get)
		uploads.DELETE("/:id", uploadHandler.Delete)
	}

	invoices := protected.Group("/invoices", middleware.RequireRoles(invoiceRoles...))
	{
		invoices.GET("", invoiceHandler.List)
		invoices.GET("/:id", invoiceHandler.Get)
		invoices.DELETE("/:id", invoiceHandler.Delete)
	}

	reports := protected.Group("/reports", middleware.RequireRoles(reportRoles...))
	{
		reports.GET("/data", reportHandler.Data)
		reports.GET("/export/csv", reportHandler.ExportCSV)
	}

	categories := protected.Group("/settings/categories", middleware.RequireRoles(model.RoleAdmin))
	{
		categories.GET("", categoryHandler.List)
		categories.POST("", categoryHandler.Create)
		categories.PUT("/:id", categoryHandler.Update)
		categories.DELETE("/:id", categoryHandler.Delete)
	}

	return router
}

func corsMiddleware(allowOrigins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "Content-Length", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowOrigins) == 1 && allowOrigins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = allowOrigins
		c.AllowCredentials = true
	}
	return cors.New(c)
}

// noCacheMiddleware keeps API responses out of shared caches
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
