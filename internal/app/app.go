package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/podworks/pod-access-service/internal/config"
	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/http/handler"
	"github.com/podworks/pod-access-service/internal/http/router"
	"github.com/podworks/pod-access-service/internal/jobs"
	"github.com/podworks/pod-access-service/internal/lock"
	"github.com/podworks/pod-access-service/internal/notify"
	"github.com/podworks/pod-access-service/internal/observability"
	"github.com/podworks/pod-access-service/internal/payments"
	"github.com/podworks/pod-access-service/internal/repository"
	"github.com/podworks/pod-access-service/internal/security"
	"github.com/podworks/pod-access-service/internal/service"
)

// App holds the assembled service and the resources that need ordered
// shutdown.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Runner        *jobs.Runner
	DB            *gorm.DB
	Observability *observability.Runtime
}

// BuildParams carries the externally supplied pieces. The caller picks
// the Gateway implementation, real client or sandbox.
type BuildParams struct {
	Config  *config.Config
	Logger  *slog.Logger
	Gateway payments.Gateway
	Runtime *observability.Runtime
}

// Build wires the whole service together: database, repositories, code
// providers, services, background runner and HTTP server. Construction
// is explicit so the dependency order is readable top to bottom.
func Build(ctx context.Context, p BuildParams) (*App, error) {
	cfg := p.Config
	logger := p.Logger

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&domain.Pod{}, &domain.Session{}, &domain.Provisioning{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	pods := repository.NewPodRepository(db)
	sessions := repository.NewSessionRepository(db)
	provisions := repository.NewProvisioningRepository(db)

	providers, err := buildCodeProviders(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens := security.NewTokenManager(cfg.JWTSecret)
	notifier := notify.NewLogNotifier(logger, cfg.ManageBaseURL)

	runnerOpts := []jobs.RunnerOption{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		runnerOpts = append(runnerOpts, jobs.WithGuard(jobs.NewGuard(client, "", 0)))
	}
	runner := jobs.NewRunner(logger, runnerOpts...)
	runner.Start(ctx)

	provisioner := service.NewProvisionService(sessions, provisions, pods, providers, notifier, logger)
	deprovisioner := service.NewDeprovisionService(pods, providers, logger)
	bookings := service.NewBookingService(service.BookingServiceParams{
		Sessions:      sessions,
		Provisions:    provisions,
		Pods:          pods,
		Gateway:       p.Gateway,
		Tokens:        tokens,
		Scheduler:     runner,
		Provisioner:   provisioner,
		Deprovisioner: deprovisioner,
		StaticCodes:   cfg.UseStaticCodes,
		PromoPricing:  cfg.PromoPricing,
		Logger:        logger,
	})
	reads := service.NewSessionService(sessions, provisions, pods, providers,
		cfg.UseStaticCodes, cfg.PromoPricing, logger)

	mux := router.NewRouter(router.Dependencies{
		BookingHandler:  handler.NewBookingHandler(bookings, logger),
		SessionHandler:  handler.NewSessionHandler(reads, logger),
		Tokens:          tokens,
		APIRateLimitRPM: cfg.APIRateLimitRPM,
		ReadyCheck: func(r *http.Request) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(r.Context())
		},
		EnableOTelHTTP: cfg.OTELTracingEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Runner:        runner,
		DB:            db,
		Observability: p.Runtime,
	}, nil
}

// Shutdown stops accepting requests, drains in-flight jobs and flushes
// telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := a.Runner.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown job runner: %w", err)
	}
	return a.Observability.Shutdown(ctx)
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DBDSN), gormCfg)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.DBDSN), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func buildCodeProviders(cfg *config.Config, logger *slog.Logger) (service.CodeProviders, error) {
	providers := service.CodeProviders{}

	if cfg.UseStaticCodes {
		static, err := lock.NewStaticProvider(cfg.StaticCodeKey, nil)
		if err != nil {
			return providers, fmt.Errorf("build static code provider: %w", err)
		}
		providers.Static = static
		providers.Live = static
		return providers, nil
	}

	remote := lock.NewRemoteProvider(cfg.LockAPIBaseURL, cfg.LockAPIKey, logger,
		lock.WithPolling(cfg.LockPollInterval, cfg.LockPollTimeout))
	providers.Live = remote
	providers.Static = remote
	if cfg.StaticCodeKey != "" {
		// static sessions booked before a switchover still resolve
		static, err := lock.NewStaticProvider(cfg.StaticCodeKey, nil)
		if err != nil {
			return providers, fmt.Errorf("build static code provider: %w", err)
		}
		providers.Static = static
	}
	return providers, nil
}
