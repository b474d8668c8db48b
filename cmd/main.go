package main

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/docuveda/lab-service/internal/handler"
	"github.com/docuveda/lab-service/internal/middleware"
	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/internal/storage"
	"github.com/docuveda/lab-service/internal/tenant"
	"github.com/docuveda/lab-service/pkg/config"
	"github.com/docuveda/lab-service/pkg/database"
	"github.com/docuveda/lab-service/pkg/jwtutil"
	"github.com/docuveda/lab-service/pkg/logger"
	"github.com/docuveda/lab-service/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("lab-service")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting lab service...", cfg.LogConfig()...)

	// Initialize database and run migrations
	if _, err := database.InitDB(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(&model.User{}, &model.Lab{}, &model.Document{}); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// The tenant content store shares the gorm connection pool
	pool, err := database.SQLPool()
	if err != nil {
		log.Fatal("Failed to get database pool", zap.Error(err))
	}
	handler.InitContentStore(tenant.NewStore(pool))

	// Initialize JWT utility
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:    cfg.JWT.SigningKey,
		AccessExpiry:  cfg.JWT.AccessExpiry,
		RefreshExpiry: cfg.JWT.RefreshExpiry,
	})
	handler.InitJWT(jwtUtil)

	// Initialize object storage for lab document uploads
	if _, err := storage.InitUploader(context.Background(), &cfg.Storage); err != nil {
		log.Warn("Object storage unavailable, file uploads disabled", zap.Error(err))
	}

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))
	e.GET("/test-storage", handler.TestStorage)

	// Auth routes
	e.POST("/signup", handler.Signup)
	e.POST("/login", handler.Login)
	e.POST("/jwt-login", handler.JWTLogin)

	authRequired := middleware.JWTAuthMiddleware(jwtUtil, database.GetDB())
	manageUsers := middleware.CanManageUsersMiddleware()

	e.GET("/user-info", handler.UserInfo, authRequired)

	// User management
	users := e.Group("/users")
	users.GET("", handler.ListUsers)
	users.PATCH("/:userId/status", handler.UpdateUserStatus, authRequired)
	users.GET("/:email", handler.GetUser, authRequired, manageUsers)
	users.PUT("/:email/update", handler.UpdateUser, authRequired, manageUsers)
	users.DELETE("/:email/delete", handler.DeleteUser, authRequired, manageUsers)

	// Lab registry
	labs := e.Group("/labs")
	labs.POST("/onboarding", handler.OnboardLab, authRequired)
	labs.GET("", handler.ListLabs)
	labs.GET("/:labId", handler.GetLab)
	labs.PUT("/:labId/update", handler.UpdateLab, authRequired)
	labs.POST("/:labId/update-files", handler.UpdateLabFiles, authRequired)
	labs.PATCH("/:labId/status", handler.UpdateLabStatus, authRequired)
	labs.GET("/:labId/document-settings", handler.GetDocumentSettings, authRequired)
	labs.PUT("/:labId/document-settings", handler.UpdateDocumentSettings, authRequired)

	e.GET("/lab-assets/:labId", handler.GetLabAssets)
	e.POST("/delete-lab", handler.DeleteLab)
	e.POST("/check-prefix", handler.CheckPrefix)

	// Documents
	documents := e.Group("/documents", authRequired)
	documents.GET("", handler.ListDocuments)
	documents.POST("", handler.CreateDocument)
	documents.GET("/:id", handler.GetDocument)
	documents.PUT("/:id", handler.UpdateDocument)
	documents.DELETE("/:id", handler.DeleteDocument)

	// Per-lab document content
	e.GET("/doc-content", handler.GetDocContent)
	e.POST("/doc-content", handler.SaveDocContent)
	e.POST("/doc-content/bulk-save", handler.BulkSaveDocContent)
	e.GET("/doc-content/by-document/:labPrefix/:documentId", handler.GetDocContentByDocument)
	e.DELETE("/doc-content/:labPrefix/:documentId", handler.DeleteDocContent)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
