package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	attendancehandler "punchd/internal/attendance/handler"
	"punchd/internal/attendance/service"
	"punchd/internal/attendance/store"
	"punchd/internal/broadcast"
	"punchd/internal/geo"
	geohandler "punchd/internal/geo/handler"
	"punchd/internal/identity"
	identityhandler "punchd/internal/identity/handler"
	"punchd/internal/platform/config"
	"punchd/internal/platform/httpserver"
	"punchd/internal/platform/logger"
	"punchd/internal/platform/metrics"
	platformredis "punchd/internal/platform/redis"
	"punchd/internal/reminder"
	httpapi "punchd/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	loc := cfg.Location()
	m := metrics.New()

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	idService, err := identity.New([]byte(cfg.JWTSigningKey), identity.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build identity service: %w", err)
	}

	settings, err := buildSettings(cfg, redisClient)
	if err != nil {
		return fmt.Errorf("build office settings: %w", err)
	}

	st, cleanup, err := buildStore(cfg, loc, idService, log)
	if err != nil {
		return fmt.Errorf("build %s store: %w", cfg.Backend, err)
	}
	defer cleanup()

	var (
		broadcaster broadcast.Broadcaster = broadcast.Noop{}
		reminders   reminder.Scheduler    = reminder.Noop{}
	)
	if redisClient != nil {
		broadcaster = broadcast.NewRedis(redisClient.Client)
		reminders = reminder.NewRedis(redisClient.Client)
	}

	svc, err := service.New(st, geo.NewValidator(settings),
		httpapi.ReportBiometric{}, httpapi.ReportLocation{},
		service.WithBroadcaster(broadcaster),
		service.WithReminders(reminders),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithLocation(loc),
	)
	if err != nil {
		return fmt.Errorf("build attendance service: %w", err)
	}

	router := httpapi.NewRouter(log, idService,
		attendancehandler.New(svc, log, attendancehandler.WithLocation(loc)),
		geohandler.New(settings, log),
		identityhandler.New(idService, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting punchd",
		"addr", cfg.Addr,
		"backend", string(cfg.Backend),
		"redis", cfg.RedisURL != "",
		"premium", cfg.PremiumFeatures,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildSettings prefers redis-backed office settings so runtime updates are
// shared across instances; either backend starts from the env-configured
// office until an explicit update overrides it.
func buildSettings(cfg config.Server, redisClient *platformredis.Client) (geo.SettingsStore, error) {
	office := geo.Office{
		Point:        geo.Point{Latitude: cfg.OfficeLatitude, Longitude: cfg.OfficeLongitude},
		RadiusMeters: cfg.OfficeRadiusM,
	}
	if redisClient != nil {
		return geo.NewRedisSettings(redisClient.Client, geo.WithOfficeFallback(office)), nil
	}
	settings := geo.NewMemorySettings()
	if err := settings.SetOffice(context.Background(), office); err != nil {
		return nil, err
	}
	return settings, nil
}

// buildStore selects the backend: embedded badger, remote postgres, or the
// in-process store for development.
func buildStore(cfg config.Server, loc *time.Location, idService *identity.Service, log *slog.Logger) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendLocal:
		db, err := store.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return store.NewBadger(db, store.WithBadgerLocation(loc)), func() { _ = db.Close() }, nil

	case config.BackendRemote:
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("PUNCHD_POSTGRES_DSN is required for the remote backend")
		}
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		st := store.NewPostgres(db, idService,
			store.WithPostgresLocation(loc),
			store.WithProfileMirror(identity.NewPostgresProfiles(db)),
			store.WithPostgresLogger(log),
		)
		return st, func() { _ = db.Close() }, nil

	case config.BackendMemory:
		return store.NewMemory(store.WithMemoryLocation(loc)), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
