package orchestrator

import (
	"context"
	"fmt"
	"maps"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// NodeSnapshot — ответ на INIT: всё, что нужно worker'у для старта.
type NodeSnapshot struct {
	Config  map[string]any `json:"config"`
	Inputs  map[string]any `json:"inputs"`
	Outputs map[string]any `json:"outputs"`
}

// NodeConfig возвращает конфигурацию узла для INIT.
//
// Config — form_data поверх значений по умолчанию определения.
// Inputs — значения от предшественников и каналы target-handles.
// Outputs — уже записанные outputs и каналы source-handles.
// Вызов только читает данные и может повторяться.
func (o *Orchestrator) NodeConfig(ctx context.Context, nodeID string) (*NodeSnapshot, error) {
	node, err := o.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, notFound("instance node", nodeID, err)
	}

	inst, err := o.store.GetInstance(ctx, node.InstanceID)
	if err != nil {
		return nil, notFound("instance", node.InstanceID, err)
	}

	p, err := o.loadPlan(ctx, inst.BlueprintID)
	if err != nil {
		return nil, err
	}

	snap := &NodeSnapshot{
		Config:  node.Config.Map(),
		Inputs:  make(map[string]any, len(node.Inputs)),
		Outputs: make(map[string]any, len(node.Outputs)),
	}
	maps.Copy(snap.Inputs, node.Inputs)
	maps.Copy(snap.Outputs, node.Outputs)

	def := p.defs[node.DefinitionID]
	for handleID, queue := range node.ReferenceQueues {
		if h, ok := def.Handle(handleID); ok && h.Type == domain.HandleSource {
			snap.Outputs[handleID] = queue
		} else {
			snap.Inputs[handleID] = queue
		}
	}

	return snap, nil
}

// Heartbeat фиксирует прогресс RUNNING узла и возвращает директиву.
//
// stop возвращается, если узел уже завершён (например, по таймауту),
// запрошена отмена или instance завершён. Heartbeat для узла, который
// ещё не запущен, — ProtocolError.
func (o *Orchestrator) Heartbeat(ctx context.Context, nodeID string, progress float64, message string) (domain.Directive, error) {
	if progress < 0 || progress > 100 {
		return "", &ProtocolError{
			NodeID:  nodeID,
			Op:      "heartbeat",
			Message: fmt.Sprintf("progress %v out of range 0..100", progress),
		}
	}

	node, err := o.updateNode(ctx, nodeID, func(n *domain.InstanceNode) (bool, error) {
		switch {
		case n.Status.IsTerminal():
			return false, nil
		case n.Status != domain.NodeStatusRunning:
			return false, &ProtocolError{
				NodeID:  nodeID,
				Op:      "heartbeat",
				Message: fmt.Sprintf("node is %s, not RUNNING", n.Status),
			}
		}
		n.Touch(progress, message)
		return true, nil
	})
	if err != nil {
		return "", err
	}

	directive := domain.DirectiveContinue
	if node.Status != domain.NodeStatusRunning || node.CancelRequested {
		directive = domain.DirectiveStop
	} else {
		inst, err := o.store.GetInstance(ctx, node.InstanceID)
		if err != nil {
			return "", notFound("instance", node.InstanceID, err)
		}
		if inst.IsFinished() || inst.CancelRequested {
			directive = domain.DirectiveStop
		}
	}

	telemetry.HeartbeatDirectives.WithLabelValues(string(directive)).Inc()
	if directive == domain.DirectiveStop {
		telemetry.WithNodeID(o.logger, nodeID).Debug("heartbeat answered with stop", "status", node.Status)
	}
	return directive, nil
}

// Cancel отменяет instance.
//
// RUNNING узлы получают запрос отмены (stop на следующем heartbeat),
// READY и UNREADY узлы сразу переходят в FAILED. Отмена завершённого
// instance ничего не меняет.
func (o *Orchestrator) Cancel(ctx context.Context, instanceID string) (*domain.ActionInstance, error) {
	unlock := o.lock(instanceID)
	defer unlock()

	inst, err := o.updateInstance(ctx, instanceID, func(inst *domain.ActionInstance) (bool, error) {
		if inst.IsFinished() || inst.CancelRequested {
			return false, nil
		}
		inst.CancelRequested = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if inst.IsFinished() {
		return inst, nil
	}

	state, err := o.loadState(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	for _, n := range state.Nodes() {
		switch n.Status {
		case domain.NodeStatusRunning:
			updated, err := o.updateNode(ctx, n.ID, func(x *domain.InstanceNode) (bool, error) {
				if x.Status != domain.NodeStatusRunning || x.CancelRequested {
					return false, nil
				}
				x.CancelRequested = true
				return true, nil
			})
			if err != nil {
				return nil, err
			}
			state.Set(updated)

		case domain.NodeStatusReady, domain.NodeStatusUnready:
			if _, err := o.SetNodeStatus(ctx, n.ID, n.Status, domain.NodeStatusFailed, func(x *domain.InstanceNode) {
				x.Error = domain.ReasonCancelled
			}); err != nil && !isMismatch(err) {
				return nil, err
			}
			updated, err := o.store.GetNode(ctx, n.ID)
			if err != nil {
				return nil, notFound("instance node", n.ID, err)
			}
			state.Set(updated)
		}
	}

	telemetry.WithInstanceID(o.logger, instanceID).Info("instance cancel requested",
		"running", len(state.NodesIn(domain.NodeStatusRunning)),
	)

	return o.settle(ctx, state)
}
