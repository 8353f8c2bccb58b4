package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	riskapp "login-risk-engine/internal/application/risk"
	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/infrastructure/cache/redis"
	"login-risk-engine/internal/infrastructure/database/postgres"
	"login-risk-engine/internal/infrastructure/events/kafka"
	"login-risk-engine/internal/infrastructure/geoip"
	"login-risk-engine/internal/infrastructure/http/router"
	"login-risk-engine/internal/infrastructure/memory"
	"login-risk-engine/internal/infrastructure/providers"
	"login-risk-engine/internal/infrastructure/telecom"
	"login-risk-engine/internal/interfaces/http/handler"
	"login-risk-engine/internal/pkg/config"
	"login-risk-engine/internal/pkg/logger"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting login risk engine",
		zap.String("version", version),
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.Bool("mock_mode", cfg.Providers.MockMode),
	)

	ctx := context.Background()

	// Attempt ledger
	var attemptRepo risk.AttemptRepository = memory.NewAttemptStore()
	var dbClient *postgres.Client
	if cfg.Database.Enabled {
		dbClient, err = postgres.NewClient(postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Name,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Warn("database connection failed, ledger is in-memory", zap.Error(err))
			dbClient = nil
		} else {
			log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.Int("port", cfg.Database.Port))
			if cfg.Database.AutoMigrate {
				if err := dbClient.Migrate(ctx); err != nil {
					log.Fatal("failed to migrate ledger schema", zap.Error(err))
				}
			}
			attemptRepo = postgres.NewAttemptRepository(dbClient)
		}
	}

	// Identity baselines
	var baselineRepo risk.BaselineRepository = memory.NewBaselineStore()
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisCfg := redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
		redisClient, err = redis.NewClient(redisCfg)
		if err != nil {
			log.Warn("redis connection failed, baselines are in-memory", zap.Error(err))
			redisClient = nil
		} else {
			log.Info("connected to Redis", zap.String("addr", redisCfg.Addr()))
			baselineRepo = redis.NewBaselineStore(redisClient, cfg.Redis.BaselineTTL)
		}
	}

	ledger := risk.NewLedger(attemptRepo, baselineRepo)

	signalProviders, closeProviders, err := buildProviders(cfg, log)
	if err != nil {
		log.Fatal("failed to initialise signal providers", zap.Error(err))
	}
	defer closeProviders()

	aggregator := riskapp.NewAggregator(signalProviders, cfg.Risk.EngineConfig(), log)

	// Decision events
	var publisher riskapp.DecisionPublisher
	var kafkaPublisher *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = kafka.NewPublisher(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.DecisionsTopic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			Logger:       log,
		})
		publisher = kafkaPublisher
		log.Info("publishing decisions", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.DecisionsTopic))
	}

	assessUseCase := riskapp.NewAssessAttemptUseCase(aggregator, ledger, publisher, log)
	outcomeUseCase := riskapp.NewRecordOutcomeUseCase(ledger, publisher, log)

	// Initialize handlers
	riskHandler := handler.NewRiskHandler(assessUseCase, outcomeUseCase, ledger, log)

	var dbHealthChecker handler.HealthChecker
	var redisHealthChecker handler.HealthChecker
	if dbClient != nil {
		dbHealthChecker = dbClient
	}
	if redisClient != nil {
		redisHealthChecker = redisClient
	}
	healthHandler := handler.NewHealthHandler(dbHealthChecker, redisHealthChecker, version, cfg.Providers.MockMode)

	routerOpts := router.Options{
		Logger:         log,
		TrustProxy:     cfg.Server.TrustProxy,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}
	if cfg.RateLimit.Enabled {
		routerOpts.RateLimit = cfg.RateLimit.Rate
		if redisClient != nil {
			routerOpts.RateLimitRedis = redisClient.Redis()
		}
	}
	r, err := router.NewRouter(riskHandler, healthHandler, routerOpts)
	if err != nil {
		log.Fatal("failed to create router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Warn("failed to flush decision events", zap.Error(err))
		}
	}
	if dbClient != nil {
		_ = dbClient.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}

	log.Info("server stopped")
}

// buildProviders wires the five signal providers to either the demo backends
// or the real telecom API and MaxMind databases
func buildProviders(cfg *config.Config, log *zap.Logger) ([]risk.SignalProvider, func(), error) {
	p := cfg.Providers
	closeFn := func() {}

	var (
		carrier  providers.CarrierLookup
		simSwap  providers.SimSwapLookup
		resolver providers.IPResolver
	)

	if p.MockMode {
		log.Warn("signal providers use demo backends")
		mock := telecom.NewMockClient(nil)
		carrier, simSwap = mock, mock
		resolver = geoip.NewMockResolver()
	} else {
		client := telecom.NewClient(telecom.Config{
			BaseURL:          p.Telecom.BaseURL,
			AccountSID:       p.Telecom.AccountSID,
			AuthToken:        p.Telecom.AuthToken,
			Timeout:          p.Telecom.Timeout,
			RetryCount:       p.Telecom.RetryCount,
			FailureThreshold: p.Telecom.FailureThreshold,
			OpenTimeout:      p.Telecom.OpenTimeout,
		})
		carrier, simSwap = client, client

		reader, err := geoip.Open(p.GeoIP.CityDBPath, p.GeoIP.AnonymousDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open GeoIP databases: %w", err)
		}
		resolver = reader
		closeFn = func() { _ = reader.Close() }
	}

	return []risk.SignalProvider{
		providers.NewPhoneCarrierProvider(carrier, providers.PhoneCarrierConfig{
			DefaultRegion:    p.Phone.DefaultRegion,
			TrustedCarriers:  p.Phone.TrustedCarriers,
			VoIPProviders:    p.Phone.VoIPProviders,
			RecentPortWindow: p.Phone.RecentPortWindow,
		}),
		providers.NewGeoIPProvider(resolver, providers.GeoIPConfig{
			SaturationKm:      p.GeoIP.SaturationKm,
			MaxTravelSpeedKmh: p.GeoIP.MaxTravelSpeedKmh,
			HighRiskCountries: p.GeoIP.HighRiskCountries,
		}),
		providers.NewDeviceProvider(p.Device.NeutralScore),
		providers.NewBehavioralProvider(),
		providers.NewSimSwapProvider(simSwap, providers.SimSwapConfig{
			DefaultRegion: p.Phone.DefaultRegion,
			RecentWindow:  p.SimSwap.RecentWindow,
			DecayWindow:   p.SimSwap.DecayWindow,
		}),
	}, closeFn, nil
}
