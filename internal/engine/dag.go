package engine

import (
	"fmt"

	"github.com/shaiso/actionflow/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// ID — идентификатор узла графа.
	ID string

	// Source — исходный узел blueprint'а.
	Source *domain.Node

	// InDegree — количество различных предшественников.
	InDegree int

	// Parents — узлы, от которых зависит этот узел.
	Parents []*Node

	// Children — узлы, которые зависят от этого узла.
	Children []*Node

	// Incoming — входящие рёбра (включая параллельные между одной парой узлов).
	Incoming []domain.Edge

	// Outgoing — исходящие рёбра.
	Outgoing []domain.Edge
}

// DAG — направленный ациклический граф blueprint'а.
type DAG struct {
	// Nodes — все узлы графа (nodeID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без входящих рёбер в порядке графа.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node

	// order — порядок узлов в исходном графе.
	order []*Node
}

// BuildDAG строит DAG из графа blueprint'а.
//
// Проверяет ссылочную целостность рёбер (узлы, не handles) и отсутствие циклов.
// Несколько рёбер между одной парой узлов дают одну связь parent → child.
func BuildDAG(graph *domain.Graph) (*DAG, error) {
	dag := &DAG{
		Nodes: make(map[string]*Node, len(graph.Nodes)),
		order: make([]*Node, 0, len(graph.Nodes)),
	}

	// Первый проход: создаём все узлы
	for i := range graph.Nodes {
		gn := &graph.Nodes[i]
		if gn.ID == "" {
			return nil, NewValidationError("", "id", fmt.Sprintf("node %d has empty ID", i), ErrEmptyNodeID)
		}
		if _, exists := dag.Nodes[gn.ID]; exists {
			return nil, NewValidationError(gn.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", gn.ID), ErrDuplicateNodeID)
		}
		node := &Node{ID: gn.ID, Source: gn}
		dag.Nodes[gn.ID] = node
		dag.order = append(dag.order, node)
	}

	// Второй проход: связываем узлы по рёбрам
	for _, edge := range graph.Edges {
		from, ok := dag.Nodes[edge.Source]
		if !ok {
			return nil, NewEdgeError(edge.ID, "source",
				fmt.Sprintf("unknown source node: %s", edge.Source), ErrUnknownNode)
		}
		to, ok := dag.Nodes[edge.Target]
		if !ok {
			return nil, NewEdgeError(edge.ID, "target",
				fmt.Sprintf("unknown target node: %s", edge.Target), ErrUnknownNode)
		}
		if from == to {
			return nil, NewEdgeError(edge.ID, "target", "edge connects node to itself", ErrSelfLoop)
		}
		from.Outgoing = append(from.Outgoing, edge)
		to.Incoming = append(to.Incoming, edge)
		dag.addEdge(from, to)
	}

	dag.findRootNodes()

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет связь между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, p := range to.Parents {
		if p == from {
			return // уже связаны
		}
	}
	from.Children = append(from.Children, to)
	to.Parents = append(to.Parents, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.order {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, child := range node.Children {
			inDegree[child.ID]--
			if inDegree[child.ID] == 0 {
				queue = append(queue, child)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		var stuck []string
		for _, node := range d.order {
			if inDegree[node.ID] > 0 {
				stuck = append(stuck, node.ID)
			}
		}
		return nil, &ValidationError{
			Field:   "edges",
			Message: fmt.Sprintf("cycle through nodes %v", stuck),
			Err:     ErrCyclicGraph,
		}
	}

	return order, nil
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// ParentIDs возвращает ID предшественников узла.
func (d *DAG) ParentIDs(id string) []string {
	node := d.Nodes[id]
	if node == nil {
		return nil
	}
	ids := make([]string, len(node.Parents))
	for i, p := range node.Parents {
		ids[i] = p.ID
	}
	return ids
}

// ChildIDs возвращает ID последователей узла.
func (d *DAG) ChildIDs(id string) []string {
	node := d.Nodes[id]
	if node == nil {
		return nil
	}
	ids := make([]string, len(node.Children))
	for i, c := range node.Children {
		ids[i] = c.ID
	}
	return ids
}

// IsReady проверяет join-условие: все предшественники узла завершены.
//
// completed — map nodeID → true для завершённых узлов.
func (d *DAG) IsReady(id string, completed map[string]bool) bool {
	node := d.Nodes[id]
	if node == nil {
		return false
	}
	for _, p := range node.Parents {
		if !completed[p.ID] {
			return false
		}
	}
	return true
}

// Descendants возвращает всех потомков узла в топологическом порядке.
func (d *DAG) Descendants(id string) []string {
	start := d.Nodes[id]
	if start == nil {
		return nil
	}

	reach := map[string]bool{}
	stack := append([]*Node(nil), start.Children...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[n.ID] {
			continue
		}
		reach[n.ID] = true
		stack = append(stack, n.Children...)
	}

	ids := make([]string, 0, len(reach))
	for _, n := range d.Order {
		if reach[n.ID] {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// PathCount считает различные пути от стартовых узлов до стоков.
//
// paths(n) = 1 для стока, иначе сумма paths(target) по исходящим рёбрам;
// результат мемоизируется, поэтому ромб A→B, A→C, B→D, C→D даёт 2.
// Параллельные рёбра между одной парой узлов — разные маршруты.
func (d *DAG) PathCount() int {
	memo := make(map[string]int, len(d.Nodes))

	// Обходим в обратном топологическом порядке: дети посчитаны раньше родителей
	for i := len(d.Order) - 1; i >= 0; i-- {
		node := d.Order[i]
		if len(node.Outgoing) == 0 {
			memo[node.ID] = 1
			continue
		}
		total := 0
		for _, e := range node.Outgoing {
			total += memo[e.Target]
		}
		memo[node.ID] = total
	}

	total := 0
	for _, root := range d.RootNodes {
		total += memo[root.ID]
	}
	return total
}
