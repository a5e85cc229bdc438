package engine

import "github.com/shaiso/actionflow/internal/domain"

// FindStartNodes возвращает ID узлов без входящих рёбер в порядке графа.
//
// Работает на любом графе, в том числе некорректном: рёбра на несуществующие
// узлы просто учитываются в in-degree цели. Полностью циклический граф даёт
// пустой результат.
func FindStartNodes(graph *domain.Graph) []string {
	inDegree := make(map[string]int, len(graph.Nodes))
	for _, e := range graph.Edges {
		inDegree[e.Target]++
	}

	starts := make([]string, 0)
	for _, n := range graph.Nodes {
		if inDegree[n.ID] == 0 {
			starts = append(starts, n.ID)
		}
	}
	return starts
}

// CountWorkflowPaths считает количество различных путей от стартовых узлов до стоков.
//
// Граф сначала проверяется на циклы; для циклического графа возвращается
// *ValidationError с ErrCyclicGraph.
func CountWorkflowPaths(graph *domain.Graph) (int, error) {
	dag, err := BuildDAG(graph)
	if err != nil {
		return 0, err
	}
	return dag.PathCount(), nil
}

// Summary — вычисляемые метрики blueprint'а для списков.
type Summary struct {
	// Steps — количество узлов.
	Steps int `json:"steps"`

	// Branches — количество путей от старта до стоков.
	Branches int `json:"branches"`

	// StartNodes — ID стартовых узлов.
	StartNodes []string `json:"start_nodes"`
}

// Summarize собирает Summary для графа.
func Summarize(graph *domain.Graph) (Summary, error) {
	branches, err := CountWorkflowPaths(graph)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Steps:      len(graph.Nodes),
		Branches:   branches,
		StartNodes: FindStartNodes(graph),
	}, nil
}
