package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер расписаний: cron-выражения и дескрипторы (@every 30s, @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule разбирает расписание sweeper'а.
//
// Поддерживаются:
//   - длительность Go ("30s", "1m") — то же, что "@every 30s"
//   - дескрипторы ("@every 30s", "@hourly")
//   - cron-выражения из пяти полей ("*/5 * * * *")
func ParseSchedule(expr string) (cron.Schedule, error) {
	if d, err := time.ParseDuration(expr); err == nil {
		if d < time.Second {
			return nil, fmt.Errorf("schedule interval %s is shorter than 1s", d)
		}
		return cron.Every(d), nil
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return schedule, nil
}
