// Package launcher — эталонный сервис запуска worker'ов.
//
// Launcher читает задания из очереди jobs.submit и запускает процесс
// Command Args... с переменными окружения ACTIONFLOW_NODE_ID и
// ACTIONFLOW_CALLBACK_URL. Завершения процесса launcher не ждёт:
// worker сам сообщает результат по протоколу управления.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/shaiso/actionflow/internal/mq"
	"github.com/shaiso/actionflow/internal/sdk"
	"github.com/shaiso/actionflow/internal/telemetry"
)

const defaultPrefetch = 10

// EnvExecutableID — ID исполняемого процесса из определения узла.
const EnvExecutableID = "ACTIONFLOW_EXECUTABLE_ID"

// ErrInvalidJob — задание без команды или узла.
var ErrInvalidJob = errors.New("invalid job")

// StartFunc запускает подготовленный процесс.
type StartFunc func(cmd *exec.Cmd) error

// Launcher запускает процессы worker'ов по заданиям из RabbitMQ.
type Launcher struct {
	conn     *mq.Connection
	consumer *mq.Consumer
	prefetch int

	start   StartFunc
	workDir string
	output  io.Writer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Launcher.
type Config struct {
	Conn     *mq.Connection
	Prefetch int // сообщений в работе одновременно (default: 10)

	// WorkDir — рабочий каталог процессов (по умолчанию текущий).
	WorkDir string

	// Output — куда писать stdout и stderr процессов (default: os.Stderr).
	Output io.Writer

	// Start — запуск процесса; по умолчанию cmd.Start с фоновым Wait.
	Start StartFunc

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Launcher.
func New(cfg Config) *Launcher {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Launcher{
		conn:     cfg.Conn,
		prefetch: prefetch,
		start:    cfg.Start,
		workDir:  cfg.WorkDir,
		output:   output,
		logger:   logger.With("component", "launcher"),
	}
	if l.start == nil {
		l.start = l.startAndReap
	}
	return l
}

// Start запускает consumer очереди jobs.submit.
func (l *Launcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.cancelFunc = cancel

	l.consumer = mq.NewConsumer(l.conn, l.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsSubmit),
		Handler:  l.HandleJob,
		Prefetch: l.prefetch,
	})

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error("job consumer error", "error", err)
		}
	}()

	l.logger.Info("launcher started", "prefetch", l.prefetch)
	return nil
}

// Stop останавливает consumer. Запущенные процессы продолжают работу.
func (l *Launcher) Stop() {
	l.logger.Info("stopping launcher...")

	if l.cancelFunc != nil {
		l.cancelFunc()
	}
	if l.consumer != nil {
		l.consumer.Stop()
	}
	l.wg.Wait()

	l.logger.Info("launcher stopped")
}

// HandleJob обрабатывает сообщение job.submit.
func (l *Launcher) HandleJob(ctx context.Context, delivery *mq.Delivery) error {
	job, err := mq.ParsePayload[mq.JobSubmitPayload](&delivery.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
	}
	return l.Launch(ctx, job)
}

// Launch запускает процесс для задания.
//
// Ошибка запуска (нет бинарника, нет прав) постоянная: повтор не поможет,
// сообщение уходит в DLQ, а узел снимет sweeper по таймауту heartbeat.
func (l *Launcher) Launch(_ context.Context, job mq.JobSubmitPayload) error {
	logger := telemetry.WithNodeID(l.logger, job.NodeID).With("executable_id", job.ExecutableID)

	if job.Command == "" || job.NodeID == "" {
		telemetry.JobsLaunched.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %w: command and node_id are required", mq.ErrPermanent, ErrInvalidJob)
	}

	// Процесс не привязан к ctx: worker живёт дольше обработки сообщения
	cmd := exec.Command(job.Command, job.Args...)
	cmd.Dir = l.workDir
	cmd.Stdout = l.output
	cmd.Stderr = l.output
	cmd.Env = append(os.Environ(),
		sdk.EnvNodeID+"="+job.NodeID,
		sdk.EnvCallbackURL+"="+job.CallbackURL,
		EnvExecutableID+"="+job.ExecutableID,
	)

	if err := l.start(cmd); err != nil {
		telemetry.JobsLaunched.WithLabelValues("error").Inc()
		logger.Error("failed to start worker", "command", job.Command, "error", err)
		return fmt.Errorf("%w: start %s: %v", mq.ErrPermanent, job.Command, err)
	}

	telemetry.JobsLaunched.WithLabelValues("ok").Inc()
	logger.Info("worker started", "command", job.Command)
	return nil
}

// startAndReap запускает процесс и ждёт его в фоне, чтобы не оставлять зомби.
func (l *Launcher) startAndReap(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		logger := l.logger.With("pid", pid, "command", cmd.Path)
		if err != nil {
			logger.Warn("worker exited with error", "error", err)
			return
		}
		logger.Debug("worker exited")
	}()
	return nil
}
