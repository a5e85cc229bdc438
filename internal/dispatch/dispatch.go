package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/actionflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultSubmitTimeout = 10 * time.Second
)

// ErrNoLauncher — dispatcher создан без launcher'а.
var ErrNoLauncher = errors.New("no launcher configured")

// Job — задание на запуск одного исполняемого процесса узла.
type Job struct {
	// ExecutableID — ID процесса в определении узла.
	ExecutableID string `json:"executable_id"`

	// Command и Args — что запускать (Args уже отрендерены).
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`

	// NodeID — токен корреляции: ID узла instance.
	NodeID string `json:"node_id"`

	// CallbackURL — базовый адрес протокола управления для worker'а.
	CallbackURL string `json:"callback_url"`
}

// Launcher — внешний сервис, который запускает процессы worker'ов.
//
// Launch только подтверждает, что запуск принят: гарантии, что worker
// когда-нибудь обратится к движку, нет.
type Launcher interface {
	Launch(ctx context.Context, job Job) error
}

// LauncherFunc — адаптер функции к интерфейсу Launcher.
type LauncherFunc func(ctx context.Context, job Job) error

// Launch вызывает f(ctx, job).
func (f LauncherFunc) Launch(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// DispatchError — ошибка отправки задания launcher'у.
type DispatchError struct {
	ExecutableID string
	NodeID       string
	Err          error
}

// Error реализует интерфейс error.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for node %s: %v", e.ExecutableID, e.NodeID, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Dispatcher — тонкая обёртка над Launcher с таймаутом, логами и метриками.
type Dispatcher struct {
	launcher Launcher
	timeout  time.Duration
	logger   *slog.Logger
}

// Config — конфигурация Dispatcher.
type Config struct {
	Launcher Launcher
	Timeout  time.Duration // таймаут одной отправки (default: 10s)
	Logger   *slog.Logger
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		launcher: cfg.Launcher,
		timeout:  timeout,
		logger:   logger,
	}
}

// Submit отправляет задание launcher'у.
// Любая ошибка возвращается как *DispatchError.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	if d.launcher == nil {
		return &DispatchError{ExecutableID: job.ExecutableID, NodeID: job.NodeID, Err: ErrNoLauncher}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.launcher.Launch(ctx, job)
	telemetry.DispatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.DispatchTotal.WithLabelValues("error").Inc()
		d.logger.Warn("job submission failed",
			"node_id", job.NodeID,
			"executable_id", job.ExecutableID,
			"error", err,
		)
		return &DispatchError{ExecutableID: job.ExecutableID, NodeID: job.NodeID, Err: err}
	}

	telemetry.DispatchTotal.WithLabelValues("ok").Inc()
	d.logger.Debug("job submitted",
		"node_id", job.NodeID,
		"executable_id", job.ExecutableID,
		"command", job.Command,
	)
	return nil
}

// LogLauncher только логирует задания.
// Используется для локального запуска без RabbitMQ: worker'ы стартуют вручную.
type LogLauncher struct {
	Logger *slog.Logger
}

// Launch логирует задание и подтверждает его.
func (l LogLauncher) Launch(_ context.Context, job Job) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("job accepted (log launcher)",
		"node_id", job.NodeID,
		"executable_id", job.ExecutableID,
		"command", job.Command,
		"args", job.Args,
		"callback_url", job.CallbackURL,
	)
	return nil
}
