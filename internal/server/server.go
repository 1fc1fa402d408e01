package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/workshop/vehicleapi/internal/audit"
	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/circuitbreaker"
	"github.com/workshop/vehicleapi/internal/config"
	"github.com/workshop/vehicleapi/internal/discovery"
	"github.com/workshop/vehicleapi/internal/events"
	"github.com/workshop/vehicleapi/internal/limiter"
	"github.com/workshop/vehicleapi/internal/logger"
	"github.com/workshop/vehicleapi/internal/metrics"
	"github.com/workshop/vehicleapi/internal/middleware"
	"github.com/workshop/vehicleapi/internal/policy"
	"github.com/workshop/vehicleapi/internal/reliability"
	"github.com/workshop/vehicleapi/internal/repository"
	"github.com/workshop/vehicleapi/internal/repository/memory"
	"github.com/workshop/vehicleapi/internal/repository/postgres"
	"github.com/workshop/vehicleapi/internal/service"
	"github.com/workshop/vehicleapi/internal/telemetry"
	"github.com/workshop/vehicleapi/internal/vehicle"
)

// Deps are the collaborators of a Server. Redis, Pool and RateLimiter are
// optional.
type Deps struct {
	Repo        repository.VehicleRepository
	Validator   auth.Validator
	RateLimiter middleware.RateLimiter
	Publisher   events.Publisher
	AuditLogger audit.Logger
	Redis       *redis.Client
	Pool        *pgxpool.Pool
}

type Server struct {
	cfg           *config.Config
	router        *mux.Router
	handler       http.Handler
	vehicles      *service.VehicleService
	validator     auth.Validator
	rateLimiter   middleware.RateLimiter
	metrics       *metrics.MetricsCollector
	auditLogger   audit.Logger
	configManager *config.DynamicConfigManager
	policyEngine  *policy.Engine
	publisher     events.Publisher
	redisClient   *redis.Client
	pool          *pgxpool.Pool
}

// New builds a server from configuration: postgres when DATABASE_URL is set,
// redis backed discovery, rate limiting and circuit breaking when REDIS_ADDR
// is set, kafka events when KAFKA_BROKERS is set.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	rlog := logger.FromContext(ctx)
	var d Deps

	if cfg.RedisAddr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		d.RateLimiter = limiter.NewTokenBucketLimiter(d.Redis)
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, 5, 2*time.Second)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		repo := postgres.New(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		d.Pool = pool
		d.Repo = repo
	} else {
		rlog.Info("DATABASE_URL not set, using the in-memory vehicle store")
		d.Repo = memory.New()
	}

	var resolver discovery.Resolver = discovery.NewStatic(cfg.AuthInstanceList()...)
	var breaker auth.Breaker
	if d.Redis != nil {
		if len(cfg.AuthInstanceList()) == 0 {
			resolver = discovery.NewRedisRegistry(d.Redis)
			if cfg.DiscoveryTTL > 0 {
				resolver = discovery.NewCached(resolver, cfg.DiscoveryTTL)
			}
		}
		breaker = circuitbreaker.New(d.Redis, cfg.BreakerFailures, cfg.BreakerCooldown)
	}
	d.Validator = auth.NewRemoteValidator(resolver, breaker, auth.ValidatorConfig{
		ServiceName:  cfg.AuthServiceName,
		ValidatePath: cfg.AuthValidatePath,
		Timeout:      cfg.AuthTimeout,
	})

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		pub, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: brokers, Topic: cfg.KafkaTopic})
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		d.Publisher = pub
	}

	d.AuditLogger = audit.NewJSONLogger(os.Stdout)
	return NewWithDeps(cfg, d)
}

// NewWithDeps builds a server around the given collaborators.
func NewWithDeps(cfg *config.Config, d Deps) (*Server, error) {
	if d.Repo == nil || d.Validator == nil {
		return nil, fmt.Errorf("server: repository and validator are required")
	}
	validator, err := vehicle.NewValidator()
	if err != nil {
		return nil, err
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.AuditLogger == nil {
		d.AuditLogger = audit.NewJSONLogger(os.Stdout)
	}

	s := &Server{
		cfg:         cfg,
		router:      mux.NewRouter(),
		vehicles:    service.NewVehicleService(d.Repo, validator, d.Publisher),
		validator:   d.Validator,
		rateLimiter: d.RateLimiter,
		metrics:     metrics.NewCollector(1000),
		auditLogger: d.AuditLogger,
		configManager: config.NewDynamicConfigManager(config.PolicyConfig{
			DefaultRateLimit: cfg.RateLimit,
			DefaultBurst:     cfg.RateBurst,
		}),
		policyEngine: policy.NewEngine(policy.VehicleRules(cfg.DeletePermission)...),
		publisher:    d.Publisher,
		redisClient:  d.Redis,
		pool:         d.Pool,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.metricsStats).Methods(http.MethodGet)

	// Order: Policy -> Authn -> Metrics -> RateLimit -> Audit -> Authz -> Handler
	chain := []middleware.Middleware{
		middleware.PolicyEnforcer(s.policyEngine),
		middleware.Authenticate(s.validator),
		middleware.MetricsMiddleware(s.metrics),
	}
	if s.rateLimiter != nil {
		chain = append(chain, middleware.RateLimit(s.rateLimiter, s.configManager,
			reliability.ParseStrategy(s.cfg.RateLimitOnFailure)))
	}
	chain = append(chain, middleware.AuditMiddleware(s.auditLogger), middleware.Authorize())

	api := s.router.PathPrefix("/api/v1").Subrouter()
	for _, mw := range chain {
		api.Use(mux.MiddlewareFunc(mw))
	}

	api.HandleFunc("/vehicle", s.CreateVehicle).Methods(http.MethodPost)
	api.HandleFunc("/vehicle/all", s.ListVehicles).Methods(http.MethodGet)
	api.HandleFunc("/vehicle", s.SearchVehicle).Methods(http.MethodGet)
	api.HandleFunc("/vehicle", s.DeleteVehicle).Methods(http.MethodDelete)
	api.HandleFunc("/vehicle/{id}", s.UpdateVehicle).Methods(http.MethodPatch)

	api.HandleFunc("/admin/ratelimit", s.GetRateLimit).Methods(http.MethodGet)
	api.HandleFunc("/admin/ratelimit", s.UpdateRateLimit).Methods(http.MethodPut)
	api.HandleFunc("/admin/policies", s.ListPolicies).Methods(http.MethodGet)

	outer := []middleware.Middleware{
		telemetry.HTTPMiddleware(s.cfg.OTELServiceName),
		handlers.RecoveryHandler(handlers.RecoveryLogger(logger.Default()), handlers.PrintRecoveryStack(true)),
	}
	if origins := s.cfg.CORSOrigins(); len(origins) > 0 {
		outer = append(outer, handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", logger.RequestIDHeader}),
			handlers.ExposedHeaders([]string{logger.RequestIDHeader}),
		))
	}
	outer = append(outer,
		logger.RequestID,
		middleware.AccessLog,
		middleware.SecureHeaders(middleware.SecurityConfig{
			EnableReplayProtection: s.cfg.ReplayProtection,
			ReplayWindow:           s.cfg.ReplayWindow,
		}),
	)
	s.handler = middleware.Chain(s.router, outer...)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("readiness: redis unavailable")
			http.Error(w, "Redis Unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("readiness: database unavailable")
			http.Error(w, "Database Unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

// Start serves until SIGINT or SIGTERM, then drains within ShutdownTimeout.
func (s *Server) Start() error {
	rlog := logger.Default()
	srv := &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		rlog.Infof("server starting on port %s", s.cfg.ServerPort)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		rlog.Infof("%v: start shutdown", sig)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

// Close releases the event publisher and the backing stores.
func (s *Server) Close() {
	if err := s.publisher.Close(); err != nil {
		logger.Default().WithError(err).Warn("closing event publisher")
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
