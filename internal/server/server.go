package server

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"paygrid-api/internal/client/facilitator"
	httpClient "paygrid-api/internal/client/http"
	"paygrid-api/internal/config"
	"paygrid-api/internal/db"
	"paygrid-api/internal/handlers"
	"paygrid-api/internal/logger"
	"paygrid-api/internal/metrics"
	"paygrid-api/internal/ownership"
	"paygrid-api/internal/reconciler"
	"paygrid-api/internal/staking"
	"paygrid-api/internal/x402"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Server owns the fully constructed dependency graph. Everything is built
// explicitly in New and wired through constructors; no package-level handler
// state.
type Server struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	cron *cron.Cron

	healthHandler      *handlers.HealthHandler
	probeHandler       *handlers.ProbeHandler
	paymentHandler     *handlers.PaymentHandler
	facilitatorHandler *handlers.FacilitatorHandler
	serviceHandler     *handlers.ServiceHandler
	reconcileHandler   *handlers.ReconcileHandler
	stakingHandler     *handlers.StakingHandler
	feeHandler         *handlers.FeeHandler
}

// New builds the server: database pool, facilitator routing, reconciler
// sources, and every handler. Construction failures are fatal configuration
// errors.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Configure the connection pool
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	queries := db.New(pool)
	recorder := metrics.NewPrometheusRecorder()

	selector, err := facilitator.NewSelector(cfg.Facilitators)
	if err != nil {
		pool.Close()
		return nil, err
	}
	facilitatorClient := facilitator.NewClient(selector, recorder)

	prober := x402.NewProber()
	forwarder := x402.NewForwarder()

	// Registry pulls are idempotent reads, the one place retries are safe.
	registryHTTP := httpClient.NewHTTPClient(
		httpClient.WithRetryConfig(httpClient.IdempotentRetryConfig()),
		httpClient.WithMetricsRecorder(recorder),
	)

	rec := reconciler.New(queries, prober,
		reconciler.NewFacilitatorSource(facilitatorClient, defaultListingNetwork(cfg)),
		reconciler.NewCommunitySource(registryHTTP, cfg.CommunityRegistryURL),
		reconciler.NewAggregatorSource(registryHTTP, cfg.AggregatorRegistryURL),
	)

	stakingService := staking.NewService(queries)
	verifier := ownership.NewVerifier()

	common := handlers.NewCommonServices(
		queries,
		cfg,
		prober,
		forwarder,
		facilitatorClient,
		rec,
		stakingService,
		verifier,
		recorder,
	)

	s := &Server{
		cfg:                cfg,
		pool:               pool,
		healthHandler:      handlers.NewHealthHandler(),
		probeHandler:       handlers.NewProbeHandler(common),
		paymentHandler:     handlers.NewPaymentHandler(common),
		facilitatorHandler: handlers.NewFacilitatorHandler(common),
		serviceHandler:     handlers.NewServiceHandler(common),
		reconcileHandler:   handlers.NewReconcileHandler(common),
		stakingHandler:     handlers.NewStakingHandler(common),
		feeHandler:         handlers.NewFeeHandler(common),
	}

	if cfg.SyncSchedule != "" {
		if err := s.scheduleReconciliation(rec, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// scheduleReconciliation runs the registry sync and a reverify batch on the
// configured cron schedule.
func (s *Server) scheduleReconciliation(rec *reconciler.Reconciler, cfg *config.Config) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(cfg.SyncSchedule, func() {
		ctx := context.Background()
		rec.SyncAll(ctx)
		if _, err := rec.Reverify(ctx, reconciler.ReverifyFilter{}, cfg.ReverifyLimit); err != nil {
			logger.Error("scheduled reverify failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("registry reconciliation scheduled", zap.String("schedule", cfg.SyncSchedule))
	return nil
}

// InitializeRoutes wires every route onto the router.
func (s *Server) InitializeRoutes(router *gin.Engine) {
	router.Use(configureCORS())

	// Add Swagger endpoint
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", s.healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// if we are not in production, log the request body
	if s.cfg.GinMode != "release" {
		router.Use(handlers.LogRequest())
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/probe", s.probeHandler.ProbeEndpoint)
		v1.POST("/proxy", s.paymentHandler.ForwardRequest)
		v1.POST("/pay", s.paymentHandler.PayService)

		fac := v1.Group("/facilitator")
		{
			fac.POST("/verify", s.facilitatorHandler.VerifyPayment)
			fac.POST("/settle", s.facilitatorHandler.SettlePayment)
			fac.GET("/supported", s.facilitatorHandler.GetSupported)
			fac.GET("/list", s.facilitatorHandler.ListResources)
		}

		services := v1.Group("/services")
		{
			services.GET("", s.serviceHandler.ListServices)
			services.POST("", s.serviceHandler.SubmitService)
			services.GET("/owner/:address", s.serviceHandler.ListServicesByOwner)
			services.GET("/:service_id", s.serviceHandler.GetService)
			services.PATCH("/:service_id", s.serviceHandler.UpdateService)
			services.POST("/:service_id/claim", s.serviceHandler.ClaimService)
		}

		reconcile := v1.Group("/reconcile")
		{
			reconcile.POST("/sync", s.reconcileHandler.SyncAll)
			reconcile.POST("/sync/:source", s.reconcileHandler.SyncSource)
			reconcile.POST("/reverify", s.reconcileHandler.Reverify)
		}

		stakingRoutes := v1.Group("/staking")
		{
			stakingRoutes.POST("/stake", s.stakingHandler.Stake)
			stakingRoutes.POST("/unstake", s.stakingHandler.InitiateUnstake)
			stakingRoutes.POST("/unstake/complete", s.stakingHandler.CompleteUnstake)
			stakingRoutes.GET("/status/:address", s.stakingHandler.StakingStatus)
		}

		fees := v1.Group("/fees")
		{
			fees.GET("/untransferred", s.feeHandler.ListUntransferred)
			fees.POST("/:id/transferred", s.feeHandler.MarkTransferred)
		}
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, router *gin.Engine) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close releases background resources.
func (s *Server) Close() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// defaultListingNetwork picks the network whose facilitator backs registry
// listings. Base mainnet when routable, otherwise its testnet.
func defaultListingNetwork(cfg *config.Config) string {
	if _, ok := cfg.Facilitators["base"]; ok {
		return "base"
	}
	return "base-sepolia"
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		// Default to localhost if not set
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		// Split and trim the origins
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", x402.HeaderPayment}
	corsConfig.ExposeHeaders = []string{x402.HeaderPaymentResponse}
	corsConfig.AllowCredentials = os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"

	return cors.New(corsConfig)
}
