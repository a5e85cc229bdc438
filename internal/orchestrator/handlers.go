package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/actionflow/internal/dispatch"
	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/engine"
	"github.com/shaiso/actionflow/internal/repo"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// Result — итог выполнения узла, присланный worker'ом.
type Result struct {
	Status  domain.ResultStatus
	Outputs map[string]any
	Error   string
}

// SetNodeStatus переводит узел из статуса from в статус to (compare-and-set).
//
// mutate вызывается до смены статуса и может заполнить inputs, outputs или error.
// Если узел уже не в статусе from, возвращается текущая запись узла
// и ошибка, оборачивающая ErrStatusMismatch.
func (o *Orchestrator) SetNodeStatus(ctx context.Context, nodeID string, from, to domain.NodeStatus, mutate func(*domain.InstanceNode)) (*domain.InstanceNode, error) {
	node, err := o.updateNode(ctx, nodeID, func(n *domain.InstanceNode) (bool, error) {
		if n.Status != from {
			return false, fmt.Errorf("%w: node %s is %s, expected %s", ErrStatusMismatch, n.ID, n.Status, from)
		}
		if mutate != nil {
			mutate(n)
		}
		switch to {
		case domain.NodeStatusReady:
			n.MarkReady()
		case domain.NodeStatusRunning:
			n.MarkRunning()
		case domain.NodeStatusCompleted:
			n.MarkCompleted(n.Outputs)
		case domain.NodeStatusFailed:
			n.MarkFailed(n.Error)
		default:
			n.Status = to
		}
		return true, nil
	})
	if err != nil {
		return node, err
	}

	telemetry.NodeTransitions.WithLabelValues(string(to)).Inc()
	return node, nil
}

// RunNode отправляет на выполнение один READY узел.
//
// Ошибка отправки не возвращается: узел переходит в FAILED, а его
// потомки пропускаются. Возвращается итоговая запись узла.
func (o *Orchestrator) RunNode(ctx context.Context, nodeID string) (*domain.InstanceNode, error) {
	node, err := o.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, notFound("instance node", nodeID, err)
	}

	unlock := o.lock(node.InstanceID)
	defer unlock()

	state, err := o.loadState(ctx, node.InstanceID)
	if err != nil {
		return nil, err
	}

	cur := state.Node(node.NodeID)
	if cur.Status != domain.NodeStatusReady {
		return nil, fmt.Errorf("%w: node %s is %s", repo.ErrInvalidState, cur.ID, cur.Status)
	}

	o.dispatchNodes(ctx, state, []*domain.InstanceNode{cur})

	if _, err := o.settle(ctx, state); err != nil {
		return nil, err
	}
	return state.Node(node.NodeID), nil
}

// FinishNode обрабатывает RESULT от worker'а.
//
// Повторный RESULT для завершённого узла ничего не меняет и возвращает
// сохранённый статус. RESULT для узла, который ещё не RUNNING, — ProtocolError.
func (o *Orchestrator) FinishNode(ctx context.Context, nodeID string, result Result) (domain.NodeStatus, error) {
	status, _, err := o.finishNode(ctx, nodeID, result, nil)
	return status, err
}

// finishNode — реализация FinishNode. guard, если задан, проверяется под
// блокировкой instance и может отменить переход. Второе значение —
// изменил ли вызов статус узла.
func (o *Orchestrator) finishNode(ctx context.Context, nodeID string, result Result, guard func(*domain.InstanceNode) bool) (domain.NodeStatus, bool, error) {
	if !result.Status.Valid() {
		return "", false, &ProtocolError{
			NodeID:  nodeID,
			Op:      "result",
			Message: fmt.Sprintf("unknown result status %q", result.Status),
		}
	}

	node, err := o.store.GetNode(ctx, nodeID)
	if err != nil {
		return "", false, notFound("instance node", nodeID, err)
	}

	unlock := o.lock(node.InstanceID)
	defer unlock()

	state, err := o.loadState(ctx, node.InstanceID)
	if err != nil {
		return "", false, err
	}

	cur := state.Node(node.NodeID)
	logger := telemetry.WithNodeID(o.logger, cur.ID)

	// 1. Повторный результат
	if cur.Status.IsTerminal() {
		logger.Debug("result for finished node ignored", "status", cur.Status)
		return cur.Status, false, nil
	}
	if cur.Status != domain.NodeStatusRunning {
		return "", false, &ProtocolError{
			NodeID:  nodeID,
			Op:      "result",
			Message: fmt.Sprintf("node is %s, not RUNNING", cur.Status),
		}
	}
	if guard != nil && !guard(cur) {
		return cur.Status, false, nil
	}

	// 2. Переход узла
	var changed bool
	switch result.Status {
	case domain.ResultSuccess:
		changed, err = o.completeNode(ctx, state, cur.NodeID, result.Outputs)
	case domain.ResultFailed:
		reason := result.Error
		if reason == "" {
			reason = "failed"
		}
		changed, err = o.failNode(ctx, state, cur.NodeID, domain.NodeStatusRunning, reason)
	}
	if err != nil {
		return "", false, err
	}

	// 3. Instance
	if _, err := o.settle(ctx, state); err != nil {
		return "", false, err
	}

	return state.Node(cur.NodeID).Status, changed, nil
}

// completeNode переводит узел в COMPLETED, продвигает готовых потомков
// в READY и отправляет их на выполнение.
func (o *Orchestrator) completeNode(ctx context.Context, state *InstanceState, graphNodeID string, outputs map[string]any) (bool, error) {
	n := state.Node(graphNodeID)

	done, err := o.SetNodeStatus(ctx, n.ID, domain.NodeStatusRunning, domain.NodeStatusCompleted, func(x *domain.InstanceNode) {
		x.Outputs = outputs
	})
	if err != nil {
		if isMismatch(err) {
			state.Set(done)
			return false, nil
		}
		return false, err
	}
	state.Set(done)

	telemetry.WithNodeID(o.logger, done.ID).Info("node completed",
		"instance_id", done.InstanceID,
		"outputs", len(outputs),
	)

	// Другой процесс мог завершить соседнего предшественника, пока
	// этот работал со старым снимком: join решается по свежему чтению
	if err := o.refresh(ctx, state); err != nil {
		return true, err
	}

	// Потомки, у которых теперь завершены все предшественники
	var ready []*domain.InstanceNode
	for _, childID := range state.DAG.ChildIDs(graphNodeID) {
		if !state.CanPromote(childID) {
			continue
		}
		child := state.Node(childID)
		promoted, err := o.SetNodeStatus(ctx, child.ID, domain.NodeStatusUnready, domain.NodeStatusReady, nil)
		if err != nil {
			if isMismatch(err) {
				state.Set(promoted)
				continue
			}
			return true, err
		}
		state.Set(promoted)
		ready = append(ready, promoted)
	}

	o.dispatchNodes(ctx, state, ready)
	return true, nil
}

// failNode переводит узел в FAILED и каскадно пропускает потомков.
func (o *Orchestrator) failNode(ctx context.Context, state *InstanceState, graphNodeID string, from domain.NodeStatus, reason string) (bool, error) {
	n := state.Node(graphNodeID)

	failed, err := o.SetNodeStatus(ctx, n.ID, from, domain.NodeStatusFailed, func(x *domain.InstanceNode) {
		x.Error = reason
	})
	if err != nil {
		if isMismatch(err) {
			state.Set(failed)
			return false, nil
		}
		return false, err
	}
	state.Set(failed)

	telemetry.WithNodeID(o.logger, failed.ID).Warn("node failed",
		"instance_id", failed.InstanceID,
		"error", reason,
	)

	if err := o.refresh(ctx, state); err != nil {
		return true, err
	}

	return true, o.cascade(ctx, state, graphNodeID)
}

// cascade переводит в FAILED UNREADY потомков упавшего узла.
// Такие узлы не могут стать READY: для этого нужны все COMPLETED предшественники.
func (o *Orchestrator) cascade(ctx context.Context, state *InstanceState, graphNodeID string) error {
	var skipped int
	for _, id := range state.DAG.Descendants(graphNodeID) {
		d := state.Node(id)
		if d.Status != domain.NodeStatusUnready || !state.HasFailedParent(id) {
			continue
		}
		n, err := o.SetNodeStatus(ctx, d.ID, domain.NodeStatusUnready, domain.NodeStatusFailed, func(x *domain.InstanceNode) {
			x.Error = domain.ReasonAncestorFailed
		})
		if err != nil {
			if isMismatch(err) {
				state.Set(n)
				continue
			}
			return err
		}
		state.Set(n)
		skipped++
	}

	if skipped > 0 {
		telemetry.WithInstanceID(o.logger, state.Instance.ID).Info("descendants skipped",
			"failed_node", graphNodeID,
			"skipped", skipped,
		)
	}
	return nil
}

// launch — захваченный узел и его задания.
type launch struct {
	node *domain.InstanceNode
	jobs []dispatch.Job
}

// dispatchNodes отправляет READY узлы на выполнение.
//
// Узел сначала захватывается переходом READY → RUNNING, затем задания
// отправляются параллельно. Узел, чьё задание не удалось отправить,
// переходит в FAILED.
func (o *Orchestrator) dispatchNodes(ctx context.Context, state *InstanceState, nodes []*domain.InstanceNode) {
	if len(nodes) == 0 {
		return
	}

	// 1. Захватываем узлы
	launches := make([]launch, 0, len(nodes))
	for _, n := range nodes {
		inputs := state.ResolveInputs(n.NodeID)

		jobs, err := o.buildJobs(state, n, inputs)
		if err != nil {
			if _, ferr := o.failNode(ctx, state, n.NodeID, domain.NodeStatusReady, err.Error()); ferr != nil {
				o.logger.Error("failed to fail node", "node_id", n.ID, "error", ferr)
			}
			continue
		}

		claimed, err := o.SetNodeStatus(ctx, n.ID, domain.NodeStatusReady, domain.NodeStatusRunning, func(x *domain.InstanceNode) {
			x.Inputs = inputs
		})
		if err != nil {
			if isMismatch(err) {
				state.Set(claimed)
				o.logger.Debug("node already claimed", "node_id", n.ID)
				continue
			}
			o.logger.Error("failed to claim node", "node_id", n.ID, "error", err)
			continue
		}
		state.Set(claimed)
		launches = append(launches, launch{node: claimed, jobs: jobs})
	}

	// 2. Отправляем задания
	errs := make([]error, len(launches))
	var g errgroup.Group
	if o.maxConcurrentDispatch > 0 {
		g.SetLimit(o.maxConcurrentDispatch)
	}
	for i, l := range launches {
		g.Go(func() error {
			for _, job := range l.jobs {
				if err := o.dispatcher.Submit(ctx, job); err != nil {
					errs[i] = err
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	// 3. Узлы с ошибкой отправки
	for i, err := range errs {
		if err == nil {
			continue
		}
		if _, ferr := o.failNode(ctx, state, launches[i].node.NodeID, domain.NodeStatusRunning, err.Error()); ferr != nil {
			o.logger.Error("failed to fail node", "node_id", launches[i].node.ID, "error", ferr)
		}
	}
}

// buildJobs готовит задания для всех исполняемых файлов определения узла.
func (o *Orchestrator) buildJobs(state *InstanceState, n *domain.InstanceNode, inputs map[string]any) ([]dispatch.Job, error) {
	def := state.plan.defs[n.DefinitionID]
	if def == nil {
		return nil, &NotFoundError{Kind: "definition", ID: n.DefinitionID}
	}

	execs := def.RelatedExecutables()
	if len(execs) == 0 {
		return nil, fmt.Errorf("definition %s: %w", def.ID, engine.ErrNoExecutables)
	}

	config := n.Config.Map()
	jobs := make([]dispatch.Job, 0, len(execs))
	for _, ex := range execs {
		args, err := engine.RenderArgs(ex.Args, &engine.ArgContext{
			NodeID:       n.ID,
			InstanceID:   n.InstanceID,
			ExecutableID: ex.ID,
			CallbackURL:  o.callbackURL,
			Config:       config,
			Inputs:       inputs,
		})
		if err != nil {
			return nil, &dispatch.DispatchError{ExecutableID: ex.ID, NodeID: n.ID, Err: err}
		}
		jobs = append(jobs, dispatch.Job{
			ExecutableID: ex.ID,
			Command:      ex.Command,
			Args:         args,
			NodeID:       n.ID,
			CallbackURL:  o.callbackURL,
		})
	}
	return jobs, nil
}
