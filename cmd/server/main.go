// Server runs the portal session authority over HTTP together with the
// session janitor.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"data-portal/backend/internal/audit"
	"data-portal/backend/internal/config"
	healthhandler "data-portal/backend/internal/health/handler"
	identityservice "data-portal/backend/internal/identity/service"
	"data-portal/backend/internal/logging"
	"data-portal/backend/internal/policy/engine"
	"data-portal/backend/internal/security"
	"data-portal/backend/internal/server"
	"data-portal/backend/internal/server/middleware"
	sessionhandler "data-portal/backend/internal/session/handler"
	"data-portal/backend/internal/session/janitor"
	sessionservice "data-portal/backend/internal/session/service"
	"data-portal/backend/internal/telemetry"
	telemetryotel "data-portal/backend/internal/telemetry/otel"
	"data-portal/backend/internal/telemetry/producer"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	tel, err := telemetryotel.Setup(ctx, telemetryotel.Config{
		Endpoint:         cfg.OTLPEndpoint,
		Insecure:         cfg.OTLPInsecure,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Env,
		SessionStore:     st.kind,
		SessionTTL:       cfg.SessionTTL,
		InactivityWindow: cfg.SessionInactivityWindow,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	tel.Install()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn("otel shutdown", "error", err)
		}
	}()

	emitters := []telemetry.EventEmitter{tel.Events}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitters = append(emitters, kafkaProducer)
		log.Info("session events streaming to kafka", "topic", cfg.TelemetryKafkaTopic)
	}
	events := telemetry.Multi(emitters...)

	auditLogger := audit.NewLogger(st.audit, middleware.ClientIP, log)

	evaluator, err := engine.NewOPAEvaluator(st.policies, log)
	if err != nil {
		return fmt.Errorf("policy engine: %w", err)
	}
	if err := evaluator.Reload(ctx); err != nil {
		log.Warn("policy: using built-in policy only", "error", err)
	}

	authority := sessionservice.NewAuthority(st.sessions, sessionservice.Options{
		TTL:              cfg.SessionTTL,
		InactivityWindow: cfg.SessionInactivityWindow,
		RefreshWindow:    cfg.SessionRefreshWindow,
		RetryMax:         cfg.SessionRetryMax,
		RetryBaseDelay:   cfg.SessionRetryBaseDelay,
		PurgeGrace:       cfg.SessionTTL,
		Logger:           log,
		Audit:            auditLogger,
		Events:           events,
		Metrics:          tel.Sessions,
	})
	authService := identityservice.NewAuthService(st.users, authority, security.NewHasher(cfg.BcryptCost), auditLogger, log)

	router := server.NewRouter(server.Deps{
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Sessions:    authority,
		Policy:      evaluator,
		Audit:       auditLogger,
		Session: sessionhandler.NewHandler(authority, authService, sessionhandler.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		}),
		Health: healthhandler.NewServer(st.pinger, evaluator),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "session_store", st.kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return janitor.New(authority, cfg.SessionCleanupInterval, log).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	// let in-flight async event emits finish before the providers shut down
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Info("http server stopped")
	return err
}
