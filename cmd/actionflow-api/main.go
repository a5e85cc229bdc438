// ActionFlow API — сервер движка оркестрации.
//
// Процесс:
//   - Обслуживает операторский API (/api/v1) и протокол управления worker'ов (/action/sdk)
//   - Отправляет задания через RabbitMQ, а без него только логирует их
//   - Периодически переводит в FAILED узлы без heartbeat (HEARTBEAT_TIMEOUT)
//
// Хранилище выбирается STORE=postgres (по умолчанию) или STORE=memory.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/actionflow/internal/api"
	"github.com/shaiso/actionflow/internal/dispatch"
	"github.com/shaiso/actionflow/internal/mq"
	"github.com/shaiso/actionflow/internal/orchestrator"
	"github.com/shaiso/actionflow/internal/repo"
	"github.com/shaiso/actionflow/internal/repo/memory"
	"github.com/shaiso/actionflow/internal/scheduler"
	"github.com/shaiso/actionflow/internal/telemetry"
)

var startTime = time.Now()

// defaultHeartbeatTimeout — срок без heartbeat, после которого RUNNING узел
// переводится в FAILED. HEARTBEAT_TIMEOUT <= 0 отключает проверку.
const defaultHeartbeatTimeout = 2 * time.Minute

// store — хранилище, общее для API и оркестратора.
type store interface {
	api.Store
	orchestrator.Store
}

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("actionflow-api")
	logger.Info("starting actionflow-api")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("actionflow-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Хранилище
	var (
		st     store
		leader scheduler.Leader
	)
	switch kind := envOr("STORE", "postgres"); kind {
	case "memory":
		st = memory.New()
		logger.Warn("using in-memory store, state is lost on restart")
	case "postgres":
		pool, err := repo.NewPool(ctx)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("connected to database")

		st = repo.NewStore(pool)

		advisory := repo.NewAdvisoryLeader(pool, repo.SweeperLockKey)
		defer advisory.Release(context.Background())
		leader = advisory
	default:
		return fmt.Errorf("unknown STORE %q", kind)
	}

	// RabbitMQ
	var (
		launcher dispatch.Launcher = dispatch.LogLauncher{Logger: logger}
		events   orchestrator.EventPublisher
	)
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, jobs are only logged", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher := mq.NewPublisher(mqConn, logger)
		launcher = dispatch.NewMQLauncher(publisher)
		events = publisher
	}

	heartbeatTimeout, err := envDuration("HEARTBEAT_TIMEOUT", defaultHeartbeatTimeout)
	if err != nil {
		return err
	}

	// Создаём orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Store:            st,
		Dispatcher:       dispatch.New(dispatch.Config{Launcher: launcher, Logger: logger}),
		Events:           events,
		CallbackURL:      os.Getenv("CALLBACK_BASE_URL"),
		HeartbeatTimeout: heartbeatTimeout,
		Logger:           logger,
	})

	// Sweeper зависших узлов. SWEEP_INTERVAL: "30s", "@every 1m" или cron-выражение
	if heartbeatTimeout > 0 {
		sched, err := scheduler.New(scheduler.Config{
			Sweeper:  orch,
			Schedule: os.Getenv("SWEEP_INTERVAL"),
			Leader:   leader,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		go sched.Run(ctx)
	}

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	api.NewHandler(api.Config{Store: st, Engine: orch, Logger: logger}).RegisterRoutes(mux)

	addr := ":" + envOr("API_PORT", "8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Ожидаем сигнал завершения
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
