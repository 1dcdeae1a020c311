package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/smiglya/Project.vsm/internal/analytics"
	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/config"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/excel"
	"github.com/smiglya/Project.vsm/internal/feed"
	"github.com/smiglya/Project.vsm/internal/handlers"
	"github.com/smiglya/Project.vsm/internal/ratelimit"
	"github.com/smiglya/Project.vsm/internal/scheduler"
	"github.com/smiglya/Project.vsm/internal/search"
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "/app/config/vsm_config.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s", configPath)
	}

	// Initialize database based on configuration
	dbType := appConfig.Database.Type
	if dbType == "" {
		dbType = getEnv("DB_TYPE", "mysql")
	}

	var db *database.GormDB
	switch dbType {
	case "postgres":
		log.Println("Using PostgreSQL with GORM")
		pgCfg := appConfig.Database.Postgres
		portStr := ""
		if pgCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", pgCfg.Port)
		}
		db, err = database.NewPostgresDB(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "postgres"),
			getEnvOrConfig(portStr, "DB_PORT", "5432"),
			getEnvOrConfig(pgCfg.User, "DB_USER", "vsm_user"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", "vsm_pass"),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "vsm_db"),
			getEnvOrConfig(pgCfg.SSLMode, "DB_SSLMODE", "disable"),
		)
	default:
		log.Println("Using MySQL with GORM")
		mysqlCfg := appConfig.Database.MySQL
		portStr := ""
		if mysqlCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", mysqlCfg.Port)
		}
		db, err = database.NewGormDB(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			getEnvOrConfig(portStr, "DB_PORT", "3306"),
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "vsm_user"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", "vsm_pass"),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "vsm_db"),
		)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Initialize Meilisearch using config
	meilisearchHost := appConfig.Search.Meilisearch.Host
	if meilisearchHost == "" {
		meilisearchHost = getEnv("MEILISEARCH_HOST", "http://meilisearch:7700")
	}
	meilisearchKey := appConfig.Search.Meilisearch.APIKey
	if meilisearchKey == "" {
		meilisearchKey = getEnv("MEILISEARCH_KEY", "masterKey123")
	}

	searchClient := search.NewSearchClient(meilisearchHost, meilisearchKey)

	// Wait for Meilisearch to be ready
	time.Sleep(2 * time.Second)

	if err := searchClient.InitIndex(); err != nil {
		log.Printf("Warning: Failed to initialize search index: %v", err)
	}

	// Core services
	calculator := calc.New(&appConfig.Thresholds)
	analyticsService := analytics.NewService(db, &appConfig.Thresholds)
	excelService := excel.NewService(db, calculator)
	feedClient := feed.NewClient(&appConfig.Feed)

	rateLimiter := ratelimit.FromConfig(&appConfig.RateLimit)
	log.Printf("Rate limiter initialized: %d req/min, %d req/hour (enabled: %v)",
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)

	// Scheduler and queue worker
	appScheduler := scheduler.NewScheduler(db, calculator, analyticsService, feedClient, appConfig)
	if err := appScheduler.Start(); err != nil {
		log.Printf("Warning: Failed to start scheduler: %v", err)
	}
	defer appScheduler.Stop()

	queueWorker := scheduler.NewQueueWorker(db, calculator,
		appConfig.Jobs.GetWorkerPollInterval(), appConfig.Jobs.WorkerMaxAttempts)
	queueWorker.Start()
	defer queueWorker.Stop()
	log.Println("Queue worker started")

	// Handlers
	depotHandler := handlers.NewDepotHandler(db, analyticsService)
	trainHandler := handlers.NewTrainHandler(db, calculator, analyticsService, searchClient)
	recordHandler := handlers.NewRecordHandler(db, calculator, analyticsService, excelService, rateLimiter)
	systemHandler := handlers.NewSystemHandler(db, appScheduler, queueWorker, rateLimiter)

	// Setup Gin router
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{getEnv("CORS_ORIGIN", "http://localhost:5173")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/health", healthCheck)

	api := r.Group("/api/v1")
	{
		depots := api.Group("/depots")
		{
			depots.GET("", depotHandler.GetDepots)
			depots.POST("", depotHandler.CreateDepot)
			depots.GET("/:id", depotHandler.GetDepot)
			depots.PUT("/:id", depotHandler.UpdateDepot)
			depots.DELETE("/:id", depotHandler.DeleteDepot)
			depots.GET("/:id/trains", depotHandler.GetDepotTrains)
			depots.GET("/:id/statistics", depotHandler.GetDepotStatistics)
		}

		trains := api.Group("/trains")
		{
			trains.GET("", trainHandler.GetTrains)
			trains.POST("", trainHandler.CreateTrain)
			trains.GET("/:id", trainHandler.GetTrain)
			trains.PUT("/:id", trainHandler.UpdateTrain)
			trains.DELETE("/:id", trainHandler.DeleteTrain)
			trains.GET("/:id/statistics", trainHandler.GetTrainStatistics)
			trains.GET("/:id/maintenance-prediction", trainHandler.GetMaintenancePrediction)
			trains.GET("/:id/mileage-patterns", trainHandler.GetMileagePatterns)
			trains.POST("/:id/recalculate", trainHandler.RecalculateTrain)
		}

		records := api.Group("/records")
		{
			records.GET("", recordHandler.GetRecords)
			records.POST("", recordHandler.CreateRecord)
			records.GET("/by-indicator", recordHandler.GetRecordsByIndicator)
			records.GET("/maintenance-summary", recordHandler.GetMaintenanceSummary)
			records.GET("/alerts", recordHandler.GetAlerts)
			records.POST("/bulk-recalculate", recordHandler.BulkRecalculate)
			records.GET("/export", recordHandler.ExportRecords)
			records.POST("/import", recordHandler.ImportRecords)
			records.GET("/import/template", recordHandler.ImportTemplate)
			records.GET("/:id", recordHandler.GetRecord)
			records.PUT("/:id", recordHandler.UpdateRecord)
			records.DELETE("/:id", recordHandler.DeleteRecord)
		}

		api.GET("/search", trainHandler.SearchTrains)
		api.POST("/search/reindex", trainHandler.ReindexTrains)

		api.GET("/stats", systemHandler.GetStats)
		api.GET("/queue/stats", systemHandler.GetQueueStats)
		api.GET("/ratelimit/stats", systemHandler.GetRateLimitStats)
		api.POST("/sync/trigger", systemHandler.TriggerSync)
		api.GET("/sync/status", systemHandler.GetSyncStatus)
	}

	port := getEnv("PORT", "8080")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
