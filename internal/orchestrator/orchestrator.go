package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/engine"
	"github.com/shaiso/actionflow/internal/mq"
	"github.com/shaiso/actionflow/internal/repo"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultCallbackURL    = "http://localhost:8080"
	defaultSweepBatchSize = 100

	// maxCASAttempts — сколько раз повторяем compare-and-set при конфликте версий.
	maxCASAttempts = 5
)

// Orchestrator управляет выполнением action instances.
//
// Orchestrator — центральный компонент системы, который:
//   - Создаёт instance и его узлы по blueprint'у
//   - Переводит узлы по машине состояний UNREADY → READY → RUNNING → COMPLETED/FAILED
//   - Отправляет задания на запуск через Dispatcher
//   - Обрабатывает heartbeat и результаты worker'ов
//   - Каскадно пропускает узлы после падения предка
//   - Финализирует instance (COMPLETED/FAILED)
//
// Все изменения одного instance сериализуются блокировкой в процессе,
// а между процессами — compare-and-set по версии документа. Решения о
// join и о завершении instance принимаются по узлам, перечитанным после
// собственной записи.
type Orchestrator struct {
	store      Store
	dispatcher Dispatcher
	events     EventPublisher

	// Configuration
	callbackURL           string
	heartbeatTimeout      time.Duration
	maxConcurrentDispatch int
	sweepBatchSize        int

	// locks — блокировки instances (instanceID → *sync.Mutex). Записи не
	// удаляются: ожидающий мог уже получить мьютекс из LoadOrStore
	locks sync.Map
	// plans — кэш разобранных blueprints (blueprintID → *plan)
	plans sync.Map

	logger *slog.Logger
	now    func() time.Time
}

// Config — конфигурация Orchestrator.
type Config struct {
	Store      Store
	Dispatcher Dispatcher
	Events     EventPublisher // опционально: уведомления о завершении instance

	CallbackURL           string        // базовый адрес протокола управления (default: http://localhost:8080)
	HeartbeatTimeout      time.Duration // 0 — зависшие узлы не отслеживаются
	MaxConcurrentDispatch int           // 0 — без ограничения
	SweepBatchSize        int           // узлов за один проход sweeper'а (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	callbackURL := cfg.CallbackURL
	if callbackURL == "" {
		callbackURL = defaultCallbackURL
	}

	batchSize := cfg.SweepBatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:                 cfg.Store,
		dispatcher:            cfg.Dispatcher,
		events:                cfg.Events,
		callbackURL:           callbackURL,
		heartbeatTimeout:      cfg.HeartbeatTimeout,
		maxConcurrentDispatch: cfg.MaxConcurrentDispatch,
		sweepBatchSize:        batchSize,
		logger:                logger,
		now:                   time.Now,
	}
}

// HeartbeatTimeout возвращает таймаут heartbeat.
func (o *Orchestrator) HeartbeatTimeout() time.Duration {
	return o.heartbeatTimeout
}

// Init создаёт instance по blueprint'у.
//
// Все узлы создаются в статусе UNREADY, стартовые узлы (без входящих рёбер)
// сразу переводятся в READY. Для каждого reference-ребра назначается
// очередь, общая для обоих концов. Instance создаётся в статусе READY
// и ничего не запускает до Start.
func (o *Orchestrator) Init(ctx context.Context, blueprintID string) (*domain.ActionInstance, error) {
	p, err := o.loadPlan(ctx, blueprintID)
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	graph := &p.blueprint.Graph

	// 1. Instance
	inst := &domain.ActionInstance{
		ID:              domain.NewInstanceID(blueprintID, now),
		BlueprintID:     blueprintID,
		Status:          domain.InstanceStatusReady,
		NodeIDs:         make([]string, 0, len(graph.Nodes)),
		FinishedNodeIDs: []string{},
		CreatedAt:       now,
	}

	// 2. Узлы
	nodes := make([]*domain.InstanceNode, 0, len(graph.Nodes))
	byID := make(map[string]*domain.InstanceNode, len(graph.Nodes))
	for _, gn := range graph.Nodes {
		n := domain.NewInstanceNode(inst.ID, gn, p.defs[gn.Data.DefinitionID])
		nodes = append(nodes, n)
		byID[gn.ID] = n
		inst.NodeIDs = append(inst.NodeIDs, n.ID)
	}

	// 3. Очереди reference-рёбер
	for _, e := range graph.Edges {
		if !e.IsReference() {
			continue
		}
		queue := domain.ReferenceQueue(inst.ID, e.ID)
		byID[e.Source].AddReferenceQueue(e.SourceHandle, queue)
		byID[e.Target].AddReferenceQueue(e.TargetHandle, queue)
	}

	// 4. Стартовые узлы
	for _, id := range engine.FindStartNodes(graph) {
		byID[id].MarkReady()
	}

	if err := o.store.CreateInstance(ctx, inst, nodes); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	telemetry.InstancesCreated.Inc()
	telemetry.WithInstanceID(o.logger, inst.ID).Info("instance created",
		"blueprint_id", blueprintID,
		"nodes", len(nodes),
	)

	return inst, nil
}

// Start запускает instance: отправляет на выполнение все READY узлы.
//
// Instance должен быть в статусе READY, иначе возвращается ошибка,
// оборачивающая repo.ErrInvalidState.
func (o *Orchestrator) Start(ctx context.Context, instanceID string) (*domain.ActionInstance, error) {
	unlock := o.lock(instanceID)
	defer unlock()

	_, err := o.updateInstance(ctx, instanceID, func(inst *domain.ActionInstance) (bool, error) {
		if inst.Status != domain.InstanceStatusReady {
			return false, fmt.Errorf("%w: instance %s is %s", repo.ErrInvalidState, inst.ID, inst.Status)
		}
		inst.MarkRunning()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	state, err := o.loadState(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	telemetry.WithInstanceID(o.logger, instanceID).Info("instance started")

	o.dispatchNodes(ctx, state, state.NodesIn(domain.NodeStatusReady))

	return o.settle(ctx, state)
}

// State загружает снимок instance со всеми узлами.
func (o *Orchestrator) State(ctx context.Context, instanceID string) (*InstanceState, error) {
	return o.loadState(ctx, instanceID)
}

// lock захватывает блокировку instance и возвращает функцию освобождения.
func (o *Orchestrator) lock(instanceID string) func() {
	v, _ := o.locks.LoadOrStore(instanceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// loadPlan возвращает blueprint, его DAG и определения узлов.
func (o *Orchestrator) loadPlan(ctx context.Context, blueprintID string) (*plan, error) {
	if v, ok := o.plans.Load(blueprintID); ok {
		return v.(*plan), nil
	}

	bp, err := o.store.GetBlueprint(ctx, blueprintID)
	if err != nil {
		return nil, notFound("blueprint", blueprintID, err)
	}

	dag, err := engine.BuildDAG(&bp.Graph)
	if err != nil {
		return nil, fmt.Errorf("blueprint %s: %w", blueprintID, err)
	}

	defs := make(map[string]*domain.WorkNodeDefinition)
	for _, id := range bp.Graph.DefinitionIDs() {
		def, err := o.store.GetDefinition(ctx, id)
		if err != nil {
			return nil, notFound("definition", id, err)
		}
		defs[id] = def
	}

	p := &plan{blueprint: bp, dag: dag, defs: defs}
	actual, _ := o.plans.LoadOrStore(blueprintID, p)
	return actual.(*plan), nil
}

// loadState загружает instance, его план и узлы.
func (o *Orchestrator) loadState(ctx context.Context, instanceID string) (*InstanceState, error) {
	inst, err := o.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, notFound("instance", instanceID, err)
	}

	p, err := o.loadPlan(ctx, inst.BlueprintID)
	if err != nil {
		return nil, err
	}

	nodes, err := o.store.ListNodes(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	state := newInstanceState(inst, p, nodes)
	for _, gn := range p.blueprint.Graph.Nodes {
		if state.Node(gn.ID) == nil {
			return nil, fmt.Errorf("instance %s: %w: %s", instanceID, ErrMissingNode, gn.ID)
		}
	}
	return state, nil
}

// updateInstance читает instance, применяет fn и сохраняет с проверкой версии.
// fn возвращает false, если изменений нет. При конфликте версий попытка повторяется.
func (o *Orchestrator) updateInstance(ctx context.Context, id string, fn func(*domain.ActionInstance) (bool, error)) (*domain.ActionInstance, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		inst, err := o.store.GetInstance(ctx, id)
		if err != nil {
			return nil, notFound("instance", id, err)
		}

		changed, err := fn(inst)
		if err != nil {
			return nil, err
		}
		if !changed {
			return inst, nil
		}

		err = o.store.UpdateInstance(ctx, inst)
		if err == nil {
			return inst, nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return nil, fmt.Errorf("update instance %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("update instance %s: %w", id, repo.ErrConflict)
}

// updateNode читает узел, применяет fn и сохраняет с проверкой версии.
// Если fn вернула ошибку, возвращается прочитанный узел вместе с ошибкой.
func (o *Orchestrator) updateNode(ctx context.Context, id string, fn func(*domain.InstanceNode) (bool, error)) (*domain.InstanceNode, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		node, err := o.store.GetNode(ctx, id)
		if err != nil {
			return nil, notFound("instance node", id, err)
		}

		changed, err := fn(node)
		if err != nil {
			return node, err
		}
		if !changed {
			return node, nil
		}

		err = o.store.UpdateNode(ctx, node)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return nil, fmt.Errorf("update node %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("update node %s: %w", id, repo.ErrConflict)
}

// settle пересчитывает прогресс instance по узлам и завершает его,
// когда все узлы COMPLETED или прогресс больше невозможен.
func (o *Orchestrator) settle(ctx context.Context, state *InstanceState) (*domain.ActionInstance, error) {
	var finished bool

	inst, err := o.updateInstance(ctx, state.Instance.ID, func(inst *domain.ActionInstance) (bool, error) {
		finished = false
		if inst.IsFinished() {
			return false, nil
		}

		// Узлы читаются на каждой попытке: конфликт версии instance значит,
		// что другой процесс мог изменить и узлы
		if err := o.refresh(ctx, state); err != nil {
			return false, err
		}

		changed := false
		if progress := state.Progress(); progress > inst.Progress {
			inst.Progress = progress
			changed = true
		}
		if ids := mergeIDs(inst.FinishedNodeIDs, state.FinishedNodeIDs()); len(ids) != len(inst.FinishedNodeIDs) {
			inst.FinishedNodeIDs = ids
			changed = true
		}

		status, done := state.Outcome()
		if !done {
			return changed, nil
		}

		switch status {
		case domain.InstanceStatusCompleted:
			inst.MarkCompleted()
		case domain.InstanceStatusFailed:
			inst.MarkFailed(fmt.Sprintf("nodes failed: %v", state.FailedNodeIDs()))
		}
		finished = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	state.Instance = inst

	if finished {
		o.onFinished(ctx, inst)
	}
	return inst, nil
}

// refresh заменяет узлы снимка их текущими записями из хранилища.
func (o *Orchestrator) refresh(ctx context.Context, state *InstanceState) error {
	nodes, err := o.store.ListNodes(ctx, state.Instance.ID)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	for _, n := range nodes {
		state.Set(n)
	}
	return nil
}

// mergeIDs дополняет stored идентификаторами из fresh, сохраняя порядок.
// Список завершённых узлов только растёт.
func mergeIDs(stored, fresh []string) []string {
	seen := make(map[string]bool, len(stored))
	for _, id := range stored {
		seen[id] = true
	}
	out := append([]string(nil), stored...)
	for _, id := range fresh {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// onFinished — учёт и уведомление о завершении instance.
func (o *Orchestrator) onFinished(ctx context.Context, inst *domain.ActionInstance) {
	telemetry.InstancesFinished.WithLabelValues(string(inst.Status)).Inc()
	logger := telemetry.WithInstanceID(o.logger, inst.ID)
	logger.Info("instance finished",
		"status", inst.Status,
		"progress", inst.Progress,
		"duration", inst.Duration(),
	)

	if o.events == nil {
		return
	}
	err := o.events.PublishInstanceFinished(ctx, mq.InstanceFinishedPayload{
		InstanceID:  inst.ID,
		BlueprintID: inst.BlueprintID,
		Status:      string(inst.Status),
		Progress:    inst.Progress,
		Error:       inst.Error,
	})
	if err != nil {
		logger.Warn("failed to publish instance finished", "error", err)
	}
}
