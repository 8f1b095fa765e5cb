package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transaction-audit-engine/audit"
	"transaction-audit-engine/config"
	"transaction-audit-engine/database"
	"transaction-audit-engine/gemini"
	"transaction-audit-engine/handlers"
	"transaction-audit-engine/metrics"
	"transaction-audit-engine/openai"
	"transaction-audit-engine/quota"
	"transaction-audit-engine/rabbitmq"
	"transaction-audit-engine/ruleset"
	"transaction-audit-engine/stubvision"
	"transaction-audit-engine/vision"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Select the vision provider
	var client vision.Client
	switch cfg.VisionProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required")
		}
		client = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "stub":
		client = stubvision.NewClient()
	default:
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required")
		}
		client = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	log.Infof("Audit engine vision provider=%s", client.SourceName())

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateAuditTables(); err != nil {
		log.Fatalf("Failed to create audit tables: %v", err)
	}

	// Initialize RabbitMQ publisher
	var publisher audit.VerdictPublisher
	pub, err := rabbitmq.NewPublisher(
		cfg.RabbitMQ.GetAMQPURL(),
		cfg.RabbitMQ.Exchange,
		cfg.RabbitMQ.AuditedRoutingKey,
	)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize RabbitMQ publisher, verdicts will not be broadcast")
		// Continue without publisher - auditing will still work
	} else {
		publisher = pub
		defer pub.Close()
	}

	metrics.Register()

	usage := quota.NewTracker()
	caller := vision.NewCaller(client, cfg.ProviderTimeout, cfg.ProviderMaxRetries, cfg.ProviderBackoffBase)
	auditor := audit.NewService(db, caller, publisher, usage, cfg.CoverageMinimum, cfg.RecordWorkers)

	registry := ruleset.NewRegistry(auditor, db.GetRuleSetKey)
	registry.Register(ruleset.NewDefaultRuleSet(cfg.TransactionWorkers))
	registry.Register(ruleset.NewBMARuleSet(cfg.TransactionWorkers))

	// Initialize handlers
	h := handlers.NewHandlers(db, registry, usage)

	// Setup HTTP server
	router := gin.Default()

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v3")
	{
		api.POST("/audit", h.RunAudit)
		api.GET("/audit/stats", h.GetAuditStats)
		api.GET("/audit/:transaction_id", h.GetAuditNote)
		api.POST("/mock/generate", h.GenerateMockData)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
