// Package scheduler периодически ищет зависшие узлы.
//
// RUNNING узел, от которого нет heartbeat дольше таймаута, переводится
// в FAILED с причиной "timeout" через orchestrator.SweepStale.
//
// Структура:
//   - scheduler.go — цикл Run и один тик Tick
//   - cron.go      — разбор расписания (длительность, @every, cron)
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Sweeper:  orch,
//	    Schedule: "@every 30s",
//	    Leader:   repo.NewAdvisoryLeader(pool, repo.SweeperLockKey), // опционально
//	    Logger:   logger,
//	})
//
//	go sched.Run(ctx)
//
// Leader Election:
//
// Когда API запущен в нескольких экземплярах, тик выполняет только
// держатель pg_try_advisory_lock. Без Leader процесс всегда лидер.
package scheduler
