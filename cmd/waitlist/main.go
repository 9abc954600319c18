package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nicoespa/MesaYa/internal/access"
	"github.com/nicoespa/MesaYa/internal/config"
	"github.com/nicoespa/MesaYa/internal/database"
	"github.com/nicoespa/MesaYa/internal/events"
	"github.com/nicoespa/MesaYa/internal/httpapi"
	"github.com/nicoespa/MesaYa/internal/metrics"
	"github.com/nicoespa/MesaYa/internal/notify"
	"github.com/nicoespa/MesaYa/internal/queue"
	"github.com/nicoespa/MesaYa/internal/ratelimit"
	"github.com/nicoespa/MesaYa/internal/verify"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("MESAYA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Auth.Mode != "allow_all" && cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("set auth.jwt_secret in config")
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		if rdb == nil {
			logger.Fatal().Msg("rate_limit.backend is redis but redis.address is empty")
		}
		limiter = ratelimit.NewRedis(rdb)
	default:
		memory := ratelimit.NewMemory()
		go memory.StartCleanup(ctx, time.Minute)
		limiter = memory
	}

	whatsapp := notify.NewWhatsAppProvider(
		cfg.Messaging.WhatsApp.BaseURL,
		cfg.Messaging.WhatsApp.PhoneNumberID,
		cfg.Messaging.WhatsApp.AccessToken,
		cfg.SendTimeout(),
	)
	sms := notify.NewSMSProvider(
		cfg.Messaging.Twilio.AccountSID,
		cfg.Messaging.Twilio.AuthToken,
		cfg.Messaging.Twilio.FromNumber,
		cfg.SendTimeout(),
	)
	pacing := rate.NewLimiter(rate.Limit(cfg.Messaging.SendRatePerSecond), cfg.Messaging.SendBurst)
	dispatcher := notify.NewDispatcher(whatsapp, sms, db, pacing, logger)

	bus := events.NewBus()
	engine := queue.New(db, dispatcher, bus, cfg.Server.BaseURL, cfg.Messaging.Region, logger)
	queue.NewAccumulator(db, logger).Register(bus)

	verifier := verify.NewService(db, sms, limiter, cfg.Messaging.Region, logger)

	var checker access.Checker
	if cfg.Auth.Mode == "allow_all" {
		logger.Warn().Msg("access checks disabled (auth.mode=allow_all)")
		checker = access.AllowAll{}
	} else {
		checker = access.NewService(db, logger)
	}

	server := httpapi.NewServer(engine, verifier, db, checker, []byte(cfg.Auth.JWTSecret), logger)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: server.Router()}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backup.Start(ctx)
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("waitlist service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
