package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/actionflow/internal/sdk"
)

// DelayExecutor — действие "delay".
//
// Ожидает указанное количество секунд и сообщает прогресс.
// Поддерживает отмену через context (stop от движка).
//
// Config:
//   - duration_sec (number): длительность задержки в секундах (default: 1)
type DelayExecutor struct{}

// Execute выполняет задержку.
func (e *DelayExecutor) Execute(ctx context.Context, node *sdk.Node) (map[string]any, error) {
	durationSec := getFloat(node.Config, "duration_sec", 1)
	if durationSec <= 0 {
		durationSec = 1
	}

	duration := time.Duration(durationSec * float64(time.Second))
	step := max(duration/10, time.Millisecond)

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	start := time.Now()
	for {
		select {
		case <-deadline.C:
			return map[string]any{"delayed_sec": durationSec}, nil
		case <-ticker.C:
			elapsed := time.Since(start)
			node.Report(100*elapsed.Seconds()/duration.Seconds(), fmt.Sprintf("waited %s", elapsed.Round(time.Millisecond)))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
