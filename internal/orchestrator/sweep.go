package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// SweepStale переводит в FAILED RUNNING узлы, от которых нет heartbeat
// дольше HeartbeatTimeout. Возвращает количество упавших узлов.
//
// Узел, приславший heartbeat после выборки, не трогается. Поздний RESULT
// от такого worker'а ничего не меняет, а следующий heartbeat получит stop.
func (o *Orchestrator) SweepStale(ctx context.Context, now time.Time) (int, error) {
	if o.heartbeatTimeout <= 0 {
		return 0, nil
	}

	deadline := now.Add(-o.heartbeatTimeout)
	stale, err := o.store.ListStaleNodes(ctx, deadline, o.sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale nodes: %w", err)
	}

	swept := 0
	for _, n := range stale {
		if err := ctx.Err(); err != nil {
			return swept, err
		}

		_, changed, err := o.finishNode(ctx, n.ID, Result{
			Status: domain.ResultFailed,
			Error:  domain.ReasonTimeout,
		}, func(cur *domain.InstanceNode) bool {
			return cur.LastHeartbeatAt == nil || cur.LastHeartbeatAt.Before(deadline)
		})
		if err != nil {
			o.logger.Warn("failed to sweep node", "node_id", n.ID, "error", err)
			continue
		}
		if changed {
			swept++
			telemetry.StaleNodesSwept.Inc()
		}
	}

	if swept > 0 {
		o.logger.Info("stale nodes swept",
			"swept", swept,
			"timeout", o.heartbeatTimeout,
		)
	}
	return swept, nil
}
