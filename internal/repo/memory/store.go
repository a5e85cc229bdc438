// Package memory — хранилище ActionFlow в памяти процесса.
//
// Используется в тестах и при STORE=memory. Семантика совпадает с
// repo.Store: те же ошибки и compare-and-set по версии. Store отдаёт
// и принимает копии, поэтому вызывающий код не может изменить
// сохранённые данные в обход Update.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/repo"
)

// Store — потокобезопасное хранилище в памяти.
type Store struct {
	mu sync.RWMutex

	definitions map[string]*domain.WorkNodeDefinition
	blueprints  map[string]*domain.Blueprint
	instances   map[string]*domain.ActionInstance
	nodes       map[string]*domain.InstanceNode

	// nodeOrder — ID узлов instance в порядке графа.
	nodeOrder map[string][]string
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		definitions: make(map[string]*domain.WorkNodeDefinition),
		blueprints:  make(map[string]*domain.Blueprint),
		instances:   make(map[string]*domain.ActionInstance),
		nodes:       make(map[string]*domain.InstanceNode),
		nodeOrder:   make(map[string][]string),
	}
}

// --- Definitions ---

func (s *Store) CreateDefinition(_ context.Context, def *domain.WorkNodeDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.definitions[def.ID]; ok {
		return repo.ErrAlreadyExists
	}
	s.definitions[def.ID] = copyDefinition(def)
	return nil
}

func (s *Store) GetDefinition(_ context.Context, id string) (*domain.WorkNodeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return copyDefinition(def), nil
}

func (s *Store) ListDefinitions(_ context.Context) ([]*domain.WorkNodeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.WorkNodeDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		out = append(out, copyDefinition(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Blueprints ---

func (s *Store) CreateBlueprint(_ context.Context, bp *domain.Blueprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blueprints[bp.ID]; ok {
		return repo.ErrAlreadyExists
	}
	s.blueprints[bp.ID] = copyBlueprint(bp)
	return nil
}

func (s *Store) GetBlueprint(_ context.Context, id string) (*domain.Blueprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bp, ok := s.blueprints[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return copyBlueprint(bp), nil
}

func (s *Store) ListBlueprints(_ context.Context) ([]*domain.Blueprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Blueprint, 0, len(s.blueprints))
	for _, bp := range s.blueprints {
		out = append(out, copyBlueprint(bp))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- Instances ---

func (s *Store) CreateInstance(_ context.Context, inst *domain.ActionInstance, nodes []*domain.InstanceNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[inst.ID]; ok {
		return repo.ErrAlreadyExists
	}
	for _, n := range nodes {
		if _, ok := s.nodes[n.ID]; ok {
			return repo.ErrAlreadyExists
		}
	}

	s.instances[inst.ID] = copyInstance(inst)
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s.nodes[n.ID] = copyNode(n)
		order = append(order, n.ID)
	}
	s.nodeOrder[inst.ID] = order
	return nil
}

func (s *Store) GetInstance(_ context.Context, id string) (*domain.ActionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return copyInstance(inst), nil
}

func (s *Store) UpdateInstance(_ context.Context, inst *domain.ActionInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.instances[inst.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Version != inst.Version {
		return repo.ErrConflict
	}

	inst.Version++
	s.instances[inst.ID] = copyInstance(inst)
	return nil
}

func (s *Store) ListInstances(_ context.Context, filter repo.InstanceFilter) ([]*domain.ActionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ActionInstance, 0)
	for _, inst := range s.instances {
		if filter.BlueprintID != "" && inst.BlueprintID != filter.BlueprintID {
			continue
		}
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		out = append(out, copyInstance(inst))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*domain.ActionInstance{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Nodes ---

func (s *Store) GetNode(_ context.Context, id string) (*domain.InstanceNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return copyNode(n), nil
}

func (s *Store) ListNodes(_ context.Context, instanceID string) ([]*domain.InstanceNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.nodeOrder[instanceID]
	out := make([]*domain.InstanceNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyNode(s.nodes[id]))
	}
	return out, nil
}

func (s *Store) UpdateNode(_ context.Context, n *domain.InstanceNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.nodes[n.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Version != n.Version {
		return repo.ErrConflict
	}

	n.Version++
	s.nodes[n.ID] = copyNode(n)
	return nil
}

func (s *Store) ListStaleNodes(_ context.Context, before time.Time, limit int) ([]*domain.InstanceNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.InstanceNode, 0)
	for _, n := range s.nodes {
		if n.Status != domain.NodeStatusRunning {
			continue
		}
		if n.LastHeartbeatAt != nil && !n.LastHeartbeatAt.Before(before) {
			continue
		}
		out = append(out, copyNode(n))
	}

	// Самые старые первыми, узлы без heartbeat — в начале
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastHeartbeatAt, out[j].LastHeartbeatAt
		switch {
		case a == nil:
			return b != nil || out[i].ID < out[j].ID
		case b == nil:
			return false
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return out[i].ID < out[j].ID
		}
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Copies ---

func copyDefinition(def *domain.WorkNodeDefinition) *domain.WorkNodeDefinition {
	c := *def
	c.Handles = slices.Clone(def.Handles)
	for i := range c.Handles {
		c.Handles[i].AllowedSocketTypes = slices.Clone(def.Handles[i].AllowedSocketTypes)
	}
	c.Inputs = slices.Clone(def.Inputs)
	c.DefaultConfigs = slices.Clone(def.DefaultConfigs)
	c.Args = slices.Clone(def.Args)
	c.Executables = slices.Clone(def.Executables)
	for i := range c.Executables {
		c.Executables[i].Args = slices.Clone(def.Executables[i].Args)
	}
	return &c
}

func copyBlueprint(bp *domain.Blueprint) *domain.Blueprint {
	c := *bp
	c.Graph.Nodes = slices.Clone(bp.Graph.Nodes)
	for i := range c.Graph.Nodes {
		c.Graph.Nodes[i].Data.FormData = slices.Clone(bp.Graph.Nodes[i].Data.FormData)
	}
	c.Graph.Edges = slices.Clone(bp.Graph.Edges)
	if bp.Graph.Viewport != nil {
		vp := *bp.Graph.Viewport
		c.Graph.Viewport = &vp
	}
	return &c
}

func copyInstance(inst *domain.ActionInstance) *domain.ActionInstance {
	c := *inst
	c.NodeIDs = slices.Clone(inst.NodeIDs)
	c.FinishedNodeIDs = slices.Clone(inst.FinishedNodeIDs)
	c.StartedAt = copyTime(inst.StartedAt)
	c.FinishedAt = copyTime(inst.FinishedAt)
	return &c
}

func copyNode(n *domain.InstanceNode) *domain.InstanceNode {
	c := *n
	c.Config = slices.Clone(n.Config)
	c.Inputs = maps.Clone(n.Inputs)
	c.Outputs = maps.Clone(n.Outputs)
	c.ReferenceQueues = maps.Clone(n.ReferenceQueues)
	c.LastHeartbeatAt = copyTime(n.LastHeartbeatAt)
	c.StartedAt = copyTime(n.StartedAt)
	c.FinishedAt = copyTime(n.FinishedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
