// Command authd serves the authcore /auth API with postgres accounts and
// redis sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/database"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/notify"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	authCfg, err := cfg.Auth()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := accounts.NewGormStore(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	builder := authcore.New().
		WithConfig(authCfg).
		WithRedis(rdb).
		WithDB(db).
		WithLogger(log)

	sinks := audit.MultiSink{audit.NewLogSink(log)}
	if cfg.KafkaEnabled() {
		auditWriter := audit.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		notifyWriter := audit.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaNotifyTopic)
		if auditWriter == nil || notifyWriter == nil {
			return errors.New("KAFKA_AUDIT_TOPIC and KAFKA_NOTIFY_TOPIC must be set with KAFKA_BROKERS")
		}

		auditSink := audit.NewKafkaSink(auditWriter, log)
		defer func() { _ = auditSink.Close() }()
		defer func() { _ = notifyWriter.Close() }()
		sinks = append(sinks, auditSink)
		builder = builder.WithNotifier(notify.NewKafkaNotifier(notifyWriter))
	} else {
		log.Warn().Msg("KAFKA_BROKERS unset: verification and reset tokens are only logged")
		builder = builder.WithNotifier(notify.NewLogNotifier(log))
	}

	engine, err := builder.WithAuditSink(sinks).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
	)

	proxies, err := httpapi.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	e := httpapi.NewServer(engine, log, httpapi.WithTrustedProxies(proxies...))
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.GET("/metrics", echo.WrapHandler(promexport.Handler(reg)))
	e.GET("/healthz", healthz(engine))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("mode", authCfg.ValidationMode.String()).Msg("authd listening")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logShutdown(log, engine, err)
	return err
}

func healthz(engine *authcore.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := engine.Ping(c.Request().Context()); err != nil {
			zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg("health check failed")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}

func logShutdown(log zerolog.Logger, engine *authcore.Engine, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Uint64("audit_dropped", engine.AuditDropped()).Msg("authd stopped")
}
