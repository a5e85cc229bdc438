package orchestrator

import (
	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/engine"
)

// plan — неизменяемые данные blueprint'а, нужные для выполнения.
// Кэшируется по ID blueprint'а: blueprints и определения не меняются.
type plan struct {
	blueprint *domain.Blueprint
	dag       *engine.DAG
	defs      map[string]*domain.WorkNodeDefinition
}

// InstanceState — снимок instance и всех его узлов.
//
// Снимок загружается из хранилища под блокировкой instance и обновляется
// по мере того, как движок меняет узлы. Решения о готовности, каскаде и
// завершении instance принимаются по нему.
type InstanceState struct {
	// Instance — данные instance из хранилища.
	Instance *domain.ActionInstance

	// DAG — граф blueprint'а.
	DAG *engine.DAG

	plan *plan

	// nodes — узлы instance по ID узла графа.
	nodes map[string]*domain.InstanceNode
}

// NodeStats — количество узлов по статусам.
type NodeStats struct {
	Total     int `json:"total"`
	Unready   int `json:"unready"`
	Ready     int `json:"ready"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// newInstanceState собирает снимок.
func newInstanceState(inst *domain.ActionInstance, p *plan, nodes []*domain.InstanceNode) *InstanceState {
	s := &InstanceState{
		Instance: inst,
		DAG:      p.dag,
		plan:     p,
		nodes:    make(map[string]*domain.InstanceNode, len(nodes)),
	}
	for _, n := range nodes {
		s.nodes[n.NodeID] = n
	}
	return s
}

// Node возвращает узел instance по ID узла графа.
func (s *InstanceState) Node(nodeID string) *domain.InstanceNode {
	return s.nodes[nodeID]
}

// Set заменяет узел в снимке.
func (s *InstanceState) Set(n *domain.InstanceNode) {
	if n != nil {
		s.nodes[n.NodeID] = n
	}
}

// Nodes возвращает узлы в порядке графа.
func (s *InstanceState) Nodes() []*domain.InstanceNode {
	out := make([]*domain.InstanceNode, 0, len(s.nodes))
	for _, gn := range s.plan.blueprint.Graph.Nodes {
		if n := s.nodes[gn.ID]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// NodesIn возвращает узлы с указанным статусом в порядке графа.
func (s *InstanceState) NodesIn(status domain.NodeStatus) []*domain.InstanceNode {
	var out []*domain.InstanceNode
	for _, n := range s.Nodes() {
		if n.Status == status {
			out = append(out, n)
		}
	}
	return out
}

// completed возвращает map ID узла графа → true для COMPLETED узлов.
func (s *InstanceState) completed() map[string]bool {
	done := make(map[string]bool, len(s.nodes))
	for id, n := range s.nodes {
		if n.Status == domain.NodeStatusCompleted {
			done[id] = true
		}
	}
	return done
}

// CanPromote проверяет join-условие: узел UNREADY и все его предшественники COMPLETED.
func (s *InstanceState) CanPromote(nodeID string) bool {
	n := s.nodes[nodeID]
	if n == nil || n.Status != domain.NodeStatusUnready {
		return false
	}
	return s.DAG.IsReady(nodeID, s.completed())
}

// HasFailedParent проверяет, упал ли хотя бы один предшественник узла.
func (s *InstanceState) HasFailedParent(nodeID string) bool {
	for _, pid := range s.DAG.ParentIDs(nodeID) {
		if p := s.nodes[pid]; p != nil && p.Status == domain.NodeStatusFailed {
			return true
		}
	}
	return false
}

// ResolveInputs собирает входы узла из outputs предшественников по data-рёбрам.
func (s *InstanceState) ResolveInputs(nodeID string) map[string]any {
	inputs := make(map[string]any)
	dn := s.DAG.GetNode(nodeID)
	if dn == nil {
		return inputs
	}
	for _, e := range dn.Incoming {
		if e.IsReference() {
			continue
		}
		src := s.nodes[e.Source]
		if src == nil || src.Outputs == nil {
			continue
		}
		if v, ok := src.Outputs[e.SourceHandle]; ok {
			inputs[e.TargetHandle] = v
		}
	}
	return inputs
}

// Stats возвращает количество узлов по статусам.
func (s *InstanceState) Stats() NodeStats {
	stats := NodeStats{Total: len(s.plan.blueprint.Graph.Nodes)}
	for _, n := range s.nodes {
		switch n.Status {
		case domain.NodeStatusUnready:
			stats.Unready++
		case domain.NodeStatusReady:
			stats.Ready++
		case domain.NodeStatusRunning:
			stats.Running++
		case domain.NodeStatusCompleted:
			stats.Completed++
		case domain.NodeStatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// Progress — доля COMPLETED узлов в процентах.
func (s *InstanceState) Progress() float64 {
	stats := s.Stats()
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.Completed) / float64(stats.Total) * 100
}

// FinishedNodeIDs возвращает ID COMPLETED узлов графа в порядке графа.
func (s *InstanceState) FinishedNodeIDs() []string {
	ids := make([]string, 0)
	for _, n := range s.NodesIn(domain.NodeStatusCompleted) {
		ids = append(ids, n.NodeID)
	}
	return ids
}

// FailedNodeIDs возвращает ID FAILED узлов графа в порядке графа.
func (s *InstanceState) FailedNodeIDs() []string {
	ids := make([]string, 0)
	for _, n := range s.NodesIn(domain.NodeStatusFailed) {
		ids = append(ids, n.NodeID)
	}
	return ids
}

// Outcome определяет терминальный статус instance.
//
// COMPLETED — все узлы COMPLETED.
// FAILED — есть FAILED узел и нет READY/RUNNING (прогресс невозможен).
// Второе значение false, если instance ещё не завершён.
func (s *InstanceState) Outcome() (domain.InstanceStatus, bool) {
	stats := s.Stats()
	switch {
	case stats.Total > 0 && stats.Completed == stats.Total:
		return domain.InstanceStatusCompleted, true
	case stats.Failed > 0 && stats.Ready+stats.Running == 0:
		return domain.InstanceStatusFailed, true
	default:
		return "", false
	}
}
