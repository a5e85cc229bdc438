// ActionFlow Launcher — запускает процессы worker'ов.
//
// Launcher:
//   - Получает задания из очереди jobs.submit
//   - Запускает Command Args... с ACTIONFLOW_NODE_ID и ACTIONFLOW_CALLBACK_URL
//   - Не ждёт завершения: worker сам отправляет RESULT движку
//
// Launchers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/actionflow/internal/launcher"
	"github.com/shaiso/actionflow/internal/mq"
	"github.com/shaiso/actionflow/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("actionflow-launcher")
	logger.Info("starting actionflow-launcher")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	prefetch, _ := strconv.Atoi(os.Getenv("LAUNCHER_PREFETCH"))

	// Создаём launcher
	l := launcher.New(launcher.Config{
		Conn:     mqConn,
		Prefetch: prefetch,
		WorkDir:  os.Getenv("LAUNCHER_WORKDIR"),
		Logger:   logger,
	})

	if err := l.Start(ctx); err != nil {
		logger.Error("failed to start launcher", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("LAUNCHER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем launcher
	l.Stop()
	logger.Info("actionflow-launcher stopped")
}
