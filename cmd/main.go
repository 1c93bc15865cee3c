package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hushbet/internal/auth"
	"hushbet/internal/config"
	"hushbet/internal/database"
	"hushbet/internal/handlers"
	"hushbet/internal/repository"
	"hushbet/internal/services"
	"hushbet/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.App.LogLevel); err == nil {
		log.SetLevel(level)
	}

	gin.SetMode(cfg.App.GinMode)

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize services
	hub := ws.NewHub(log)
	repo := repository.New(database.GetDB())
	marketService := services.NewMarketService(repo, hub, log)

	// Initialize handlers
	marketHandler := handlers.NewMarketHandler(marketService, cfg.App.DefaultStartingBalance)
	betHandler := handlers.NewBetHandler(marketService)

	// Set up Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public routes: creating and joining a market is how a device earns its
	// token in the first place.
	router.POST("/api/markets", marketHandler.CreateMarket)
	router.POST("/api/markets/join", marketHandler.JoinMarket)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.GET("/markets/mine", marketHandler.MyMarkets)
		api.GET("/markets/:id", marketHandler.GetMarket)
		api.POST("/markets/:id/open", marketHandler.OpenMarket)
		api.POST("/markets/:id/close", marketHandler.CloseMarket)
		api.POST("/markets/:id/resolve", marketHandler.ResolveMarket)
		api.DELETE("/markets/:id", marketHandler.DeleteMarket)
		api.GET("/markets/:id/leaderboard", marketHandler.Leaderboard)
		api.GET("/markets/:id/bets", marketHandler.ListBets)
		api.GET("/markets/:id/bets/pending", marketHandler.ListPendingBets)
		api.POST("/markets/:id/bets", marketHandler.CreateBet)
		api.GET("/me/reveal", marketHandler.Reveal)

		api.GET("/bets/:id", betHandler.GetBet)
		api.POST("/bets/:id/approve", betHandler.ApproveBet)
		api.POST("/bets/:id/wagers", betHandler.PlaceWager)
		api.POST("/bets/:id/resolve", betHandler.ResolveBet)
		api.GET("/bets/:id/history", betHandler.ProbabilityHistory)
	}

	// WebSocket event feed, one room per market
	router.GET("/ws/:market_id", func(c *gin.Context) {
		marketID, err := uuid.Parse(c.Param("market_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
			return
		}
		hub.Serve(c, marketID)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("server exited")
}
