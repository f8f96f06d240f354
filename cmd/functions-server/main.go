// cmd/functions-server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"congregation-functions/internal/common/auth"
	"congregation-functions/internal/common/aws"
	"congregation-functions/internal/common/config"
	"congregation-functions/internal/common/database"
	commonhttp "congregation-functions/internal/common/http"
	"congregation-functions/internal/common/logger"
	"congregation-functions/internal/common/observability"
	"congregation-functions/internal/functions/digest"
	"congregation-functions/internal/functions/notify"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting functions server...")

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		zapLog.Fatal("ses client failed", zap.Error(err))
	}

	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)

	zapLog.Info("All external service clients initialized")

	// --- Wire the notify-event function ---
	notifyCfg := &notify.Config{
		FromEmail: cfg.Integrations.AWS.SES.FromEmail,
		Timeout:   config.GetDuration(cfg.Notifier.Timeout),
	}
	directory := notify.NewDirectory(pg.DB)
	notifyService := notify.NewService(notifyCfg, directory, sesClient, log)
	notifyHandler := notify.NewHandler(notifyService, pg.DB, keycloak, log)

	// --- Wire the board-digest function ---
	digestCfg := &digest.Config{
		BatchSize:        cfg.Digest.BatchSize,
		MaxIterations:    cfg.Digest.MaxIterations,
		MaxExecutionTime: config.GetDuration(cfg.Digest.MaxExecutionTime),
		ActivityWindow:   config.GetDuration(cfg.Digest.ActivityWindow),
		ContinuationURL:  cfg.Server.BaseURL + "/functions/board-digest",
		BoardsURL:        cfg.Notifier.BoardsURL,
	}
	digestService := digest.NewService(
		digestCfg,
		digest.NewStore(pg.DB),
		digest.NewCursorStore(rdb),
		digest.NewMembershipAccessChecker(pg.DB),
		notifyService,
		commonhttp.NewClient(config.GetDuration(cfg.Digest.RequestTimeout)),
		log,
	)
	digestHandler := digest.NewHandler(digestService, log)

	instrument := func(name string, next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			obs.RecordRequest(r.Context(), name, "completed")
			obs.RecordDuration(r.Context(), name, time.Since(start))
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/functions/notify-event", instrument("notify-event", notifyHandler))
	mux.Handle("/functions/board-digest", instrument("board-digest", digestHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if err := pg.Ping(r.Context()); err != nil {
			status, code = "postgres unreachable", http.StatusServiceUnavailable
		} else if err := rdb.Ping(r.Context()); err != nil {
			status, code = "redis unreachable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("Functions server listening", zap.String("address", cfg.Server.ListenAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Functions server stopped gracefully")
}
