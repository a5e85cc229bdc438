package domain

import "time"

// Blueprint — шаблон процесса в виде DAG из типизированных узлов.
//
// Blueprint неизменяем после создания: запуск (ActionInstance) всегда
// выполняет тот граф, который был сохранён.
type Blueprint struct {
	// ID — уникальный идентификатор blueprint.
	ID string `json:"id" yaml:"id,omitempty"`

	// Name — имя шаблона.
	Name string `json:"name" yaml:"name"`

	// Version — версия шаблона (задаётся автором).
	Version int `json:"version" yaml:"version"`

	// Graph — узлы и рёбра.
	Graph Graph `json:"graph" yaml:"graph"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Graph — DAG blueprint'а.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`

	// Viewport — только для отображения, движок его не читает.
	Viewport *Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`
}

// Position — координаты узла на холсте.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Viewport — состояние холста редактора.
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// Node — узел графа.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type,omitempty" yaml:"type,omitempty"`
	Position Position `json:"position" yaml:"position"`
	Data     NodeData `json:"data" yaml:"data"`
}

// NodeData — ссылка на определение и заполненная форма.
type NodeData struct {
	DefinitionID string  `json:"definition_id" yaml:"definition_id"`
	Version      int     `json:"version,omitempty" yaml:"version,omitempty"`
	FormData     Configs `json:"form_data,omitempty" yaml:"form_data,omitempty"`
}

// EdgeType — способ передачи данных по ребру.
type EdgeType string

const (
	// EdgeTypeData — значение копируется из outputs источника в inputs приёмника.
	EdgeTypeData EdgeType = "data"

	// EdgeTypeReference — данные передаются через канал (очередь), узлы получают имя канала.
	EdgeTypeReference EdgeType = "reference"
)

// Edge — ребро между handle'ами двух узлов.
type Edge struct {
	ID           string   `json:"id" yaml:"id"`
	Source       string   `json:"source" yaml:"source"`
	SourceHandle string   `json:"source_handle" yaml:"source_handle"`
	Target       string   `json:"target" yaml:"target"`
	TargetHandle string   `json:"target_handle" yaml:"target_handle"`
	Type         EdgeType `json:"type,omitempty" yaml:"type,omitempty"`
}

// IsReference возвращает true для рёбер ссылочного типа.
func (e Edge) IsReference() bool {
	return e.Type == EdgeTypeReference
}

// Node ищет узел по ID.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// DefinitionIDs возвращает уникальные ID определений в порядке появления.
func (g *Graph) DefinitionIDs() []string {
	seen := make(map[string]bool, len(g.Nodes))
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !seen[n.Data.DefinitionID] {
			seen[n.Data.DefinitionID] = true
			ids = append(ids, n.Data.DefinitionID)
		}
	}
	return ids
}

// IncomingEdges возвращает рёбра, входящие в узел.
func (g *Graph) IncomingEdges(nodeID string) []Edge {
	var edges []Edge
	for _, e := range g.Edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}
