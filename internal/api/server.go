// Package api exposes the reconciled state, consensus verdicts, and
// trade-plan risk analysis over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"priceaction-bot/internal/auth"
	"priceaction-bot/internal/events"
	"priceaction-bot/internal/pipeline"
	"priceaction-bot/internal/risk"
	"priceaction-bot/internal/state"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	store       state.Store
	reconciler  *pipeline.Reconciler
	riskEngine  *risk.Engine
	market      pipeline.MarketData
	eventBus    *events.EventBus
	authService *auth.Service
	hub         *WSHub
	logger      zerolog.Logger
}

// NewServer creates a new API server. authService and market may be nil.
func NewServer(
	config ServerConfig,
	store state.Store,
	reconciler *pipeline.Reconciler,
	riskEngine *risk.Engine,
	market pipeline.MarketData,
	eventBus *events.EventBus,
	authService *auth.Service,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		config:      config,
		store:       store,
		reconciler:  reconciler,
		riskEngine:  riskEngine,
		market:      market,
		eventBus:    eventBus,
		authService: authService,
		hub:         NewWSHub(logger),
		logger:      logger,
	}
	s.setupRoutes()

	// Mirror every bus event to connected WebSocket clients.
	if eventBus != nil {
		eventBus.SubscribeAll(s.hub.BroadcastEvent)
	}
	go s.hub.Run()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	if s.authService != nil {
		s.router.POST("/api/auth/login", s.handleLogin)
	}

	api := s.router.Group("/api")
	if s.authService != nil {
		api.Use(s.authService.Middleware())
	}

	api.GET("/states/:symbol", s.handleGetStates)
	api.GET("/states/:symbol/:timeframe", s.handleGetState)
	api.GET("/states/:symbol/:timeframe/history", s.handleGetStateHistory)
	api.GET("/consensus/:symbol", s.handleGetConsensus)
	api.POST("/reconcile/:symbol", s.handleReconcile)

	api.POST("/risk/calculate", s.handleRiskCalculate)
	api.POST("/plans", s.handleCreatePlan)
	api.GET("/plans/:id", s.handleGetPlan)
	api.POST("/plans/:id/close", s.handleClosePlan)
	api.POST("/plans/:id/expire", s.handleExpirePlan)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("HTTP server shutting down")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
