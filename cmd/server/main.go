package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"propmatch/internal/config"
	"propmatch/internal/dataset"
	"propmatch/internal/handler"
	"propmatch/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Print version info
	log.Printf("PropMatch AI — Real Estate Matchmaker")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Load the property dataset
	frame, err := dataset.LoadWorkbook(cfg.Dataset.Path, cfg.Dataset.SheetIndex)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	store, err := dataset.NewStore(frame, cfg.Agent.MaxResultRows)
	if err != nil {
		log.Fatalf("Failed to build dataset store: %v", err)
	}
	defer store.Close()

	log.Printf("✅ Loaded dataset: %d rows, %d columns (sheet %q of %s)",
		store.RowCount(), len(frame.Columns), frame.Sheet, frame.Source)

	// Initialize Groq client
	groqClient := service.NewGroqClient(&cfg.Groq)
	if cfg.Groq.Enabled {
		log.Printf("✅ Groq client initialized")
		log.Printf("   - API Base: %s", cfg.Groq.APIBase)
		log.Printf("   - Model: %s", cfg.Groq.Model)
		log.Printf("   - Temperature: %.2f", cfg.Groq.Temperature)
		log.Printf("   - Max retries: %d", cfg.Groq.MaxRetries)
		log.Printf("   - Throttle: %d calls/minute", cfg.Throttle.MaxPerMinute)
	} else {
		log.Println("⚠️  Groq is disabled - property search will not work")
		log.Println("   Set GROQ_API_KEY environment variable to enable search")
	}

	// Initialize the agent and the session
	agent := service.NewTableAgent(groqClient, store, cfg.Dataset.HeadRows, cfg.Agent.MaxIterations)
	throttle := service.NewThrottle(cfg.Throttle.MaxPerMinute)
	session := service.NewMatchmaker(agent, throttle, cfg.Groq.MaxRetries, cfg.Cache.MaxEntries)

	log.Println("✅ Services initialized")

	// Initialize handlers
	chatHandler := handler.NewChatHandler(session, store.Schema())
	feedbackHandler := handler.NewFeedbackHandler(session)

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "propmatch",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		// Chat endpoints
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.POST("/chat/stream", chatHandler.ChatStream) // Streaming chat
		apiV1.GET("/chat/history", chatHandler.History)

		// Dataset and cache introspection
		apiV1.GET("/dataset/schema", chatHandler.Schema)
		apiV1.GET("/cache/stats", chatHandler.CacheStats)

		// Feedback endpoint
		apiV1.POST("/feedback", feedbackHandler.Submit)
	}

	// Serve static files (frontend)
	// This function is implemented in embed.go (production) or static_dev.go (development)
	setupStaticFiles(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📝 API: http://localhost:%d/api/v1", cfg.Server.Port)
	log.Printf("🌐 Chat UI: http://localhost:%d", cfg.Server.Port)

	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	log.Println("✅ Server stopped")
}
