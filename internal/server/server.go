package server

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/cache"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/carrier"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/config"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/database"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/gateway"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/media"
	custommiddleware "github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/middleware"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/repository"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/service"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/session"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/transport"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const uploadsPath = "/uploads"

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  redis.UniversalClient
}

// Dependencies are the external resources the server is built on
type Dependencies struct {
	DB    database.Service
	Redis redis.UniversalClient
	Media media.Store
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) (*Server, error) {
	router, err := NewRouter(cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     deps.DB,
		redis:  deps.Redis,
	}

	return server, nil
}

// NewRouter wires repositories, services and handlers into the HTTP router
func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) (chi.Router, error) {
	db := deps.DB.DB()

	views, err := view.New(cfg.Server.Debug, logger)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(cfg.Session)

	var queryCache cache.Cache = cache.Noop{}
	if cfg.Cache.Enabled && deps.Redis != nil {
		queryCache = cache.NewRedis(deps.Redis, cfg.Cache.Prefix)
	}

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		jwtSecret = hex.EncodeToString(securecookie.GenerateRandomKey(32))
		logger.Warn("JWT_SECRET not set, using a per-process signing key")
	}

	// Initialize repositories
	tx := repository.NewTransactor(db)
	userRepo := repository.NewUserRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	imageRepo := repository.NewProductImageRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	// Initialize services
	userService := service.NewUserService(
		userRepo,
		resetRepo,
		tx,
		service.NewPasswordHasher(service.DefaultArgon2Params),
		service.LogResetNotifier{Logger: logger.Named("mail")},
		service.UserServiceConfig{
			JWTSecret:   jwtSecret,
			TokenExpiry: time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
			BaseURL:     cfg.Server.BaseURL,
		},
		logger,
	)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, imageRepo, queryCache, cfg.Cache.DefaultTTL, logger)
	cartService := service.NewCartService(cartRepo, productRepo, tx, logger)
	trackingService := service.NewTrackingService(
		orderRepo,
		trackingRepo,
		tx,
		carrier.NewSimulatedRegistry(cfg.Tracking.FailureRate),
		service.TrackingPolicy{
			RefreshThrottle: cfg.Tracking.RefreshThrottle,
			LookupTTL:       cfg.Tracking.LookupTTL,
			HistoryLimit:    cfg.Tracking.HistoryLimit,
			CarrierTimeout:  cfg.Tracking.CarrierTimeout,
		},
		logger,
	)
	paymentService := service.NewPaymentService(
		orderRepo,
		cartRepo,
		webhookRepo,
		tx,
		gateway.NewClient(cfg.Gateway),
		service.PaymentConfig{
			Currency:    cfg.Gateway.Currency,
			CallbackURL: cfg.Server.BaseURL + "/payment/verify",
		},
		logger,
	)
	adminService := service.NewAdminService(productRepo, categoryRepo, imageRepo, orderRepo, deps.Media, catalogService, logger)

	// Create router
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := deps.DB.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	if !cfg.Storage.Enabled {
		router.Handle(uploadsPath+"/*", http.StripPrefix(uploadsPath+"/", http.FileServer(http.Dir(cfg.Storage.LocalDir))))
	}

	payments := transport.NewPaymentHandler(paymentService, sessions, views, logger)
	payments.RegisterWebhook(router)

	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.AuthMiddleware(sessions, userService, logger))
		if cfg.RateLimit.Enabled && deps.Redis != nil {
			r.Use(custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "rl",
			}, logger))
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/products", http.StatusFound)
		})

		transport.NewCatalogHandler(catalogService, deps.Media, sessions, views, logger).RegisterRoutes(r)
		transport.NewCartHandler(cartService, sessions, views, logger).RegisterRoutes(r)
		transport.NewTrackingHandler(trackingService, logger).RegisterRoutes(r)
		payments.RegisterRoutes(r)
		transport.NewUserHandler(userService, sessions, views, logger).RegisterRoutes(r)
		transport.NewAdminHandler(adminService, logger).RegisterRoutes(r)
	})

	return router, nil
}

// NewMediaStore picks S3 when it is enabled, otherwise the local uploads directory
func NewMediaStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (media.Store, error) {
	if cfg.Enabled {
		return media.NewS3Store(ctx, cfg, logger)
	}
	return media.NewLocalStore(cfg.LocalDir, uploadsPath), nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
