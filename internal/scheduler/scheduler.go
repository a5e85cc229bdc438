package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule — расписание sweeper'а по умолчанию.
const DefaultSchedule = "@every 30s"

// Sweeper завершает зависшие узлы.
type Sweeper interface {
	SweepStale(ctx context.Context, now time.Time) (int, error)
}

// Leader решает, выполняет ли этот процесс тик.
// Когда несколько процессов делят одно хранилище, sweeper работает только у лидера.
type Leader interface {
	TryLead(ctx context.Context) (bool, error)
}

// Scheduler периодически запускает поиск зависших узлов.
type Scheduler struct {
	sweeper  Sweeper
	leader   Leader
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Sweeper  Sweeper
	Schedule string // расписание (default: "@every 30s")
	Leader   Leader // опционально: без него процесс всегда лидер
	Logger   *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	expr := cfg.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}

	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		sweeper:  cfg.Sweeper,
		leader:   cfg.Leader,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Tick выполняет один тик.
//
// 1. Проверяет лидерство (если настроено)
// 2. Переводит в FAILED узлы без heartbeat дольше таймаута
//
// Не лидер пропускает тик без ошибки.
func (s *Scheduler) Tick(ctx context.Context) error {
	// 1. Лидерство
	if s.leader != nil {
		ok, err := s.leader.TryLead(ctx)
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		if !ok {
			s.logger.Debug("not a leader, tick skipped")
			return nil
		}
	}

	// 2. Зависшие узлы
	swept, err := s.sweeper.SweepStale(ctx, s.now())
	if err != nil {
		return fmt.Errorf("sweep stale nodes: %w", err)
	}

	s.logger.Debug("scheduler tick completed", "swept", swept)
	return nil
}

// Run вызывает Tick по расписанию до отмены ctx.
// Ошибки тика логируются и не останавливают цикл.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")

	for {
		now := s.now()
		timer := time.NewTimer(s.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}
