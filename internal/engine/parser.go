package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/actionflow/internal/domain"
)

// Format — формат документа с определением или blueprint'ом.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat определяет формат по расширению файла (по умолчанию JSON).
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseBlueprint разбирает blueprint из JSON или YAML.
// Граф не валидируется: для этого нужен набор определений (см. ValidateGraph).
func ParseBlueprint(data []byte, format Format) (*domain.Blueprint, error) {
	var bp domain.Blueprint
	if err := decode(data, format, &bp); err != nil {
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	return &bp, nil
}

// ParseDefinition разбирает и валидирует определение узла.
func ParseDefinition(data []byte, format Format) (*domain.WorkNodeDefinition, error) {
	var def domain.WorkNodeDefinition
	if err := decode(data, format, &def); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if err := ValidateDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

func decode(data []byte, format Format, v any) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ValidateDefinition проверяет определение узла.
//
// Проверяет:
// - Наличие ID
// - Корректность и уникальность handles
// - Наличие хотя бы одного исполняемого процесса
func ValidateDefinition(def *domain.WorkNodeDefinition) error {
	if def == nil || def.ID == "" {
		return NewValidationError("", "id", "definition has empty ID", ErrEmptyDefinitionID)
	}

	seen := make(map[string]bool, len(def.Handles))
	for i, h := range def.Handles {
		if h.ID == "" {
			return NewValidationError(def.ID, "handles",
				fmt.Sprintf("handle %d has empty ID", i), ErrInvalidHandle)
		}
		if seen[h.ID] {
			return NewValidationError(def.ID, "handles",
				fmt.Sprintf("duplicate handle ID: %s", h.ID), ErrInvalidHandle)
		}
		seen[h.ID] = true

		if h.Type != domain.HandleSource && h.Type != domain.HandleTarget {
			return NewValidationError(def.ID, "handles",
				fmt.Sprintf("handle %s has unknown type %q", h.ID, h.Type), ErrInvalidHandle)
		}
	}

	execs := def.RelatedExecutables()
	if len(execs) == 0 {
		return NewValidationError(def.ID, "executables", "definition has no executables", ErrNoExecutables)
	}
	for _, ex := range execs {
		if ex.ID == "" || ex.Command == "" {
			return NewValidationError(def.ID, "executables",
				fmt.Sprintf("executable %q has empty id or command", ex.ID), ErrNoExecutables)
		}
	}

	return nil
}

// ValidateGraph выполняет полную валидацию графа blueprint'а.
//
// defs — определения, на которые ссылаются узлы (definitionID → определение).
//
// Проверяет:
// - Наличие узлов и уникальность ID узлов и рёбер
// - Что каждый узел ссылается на известное определение
// - Что концы рёбер ссылаются на существующие узлы и handles нужного направления
// - Совместимость socket_type источника с allowed_socket_types приёмника
// - Отсутствие петель и циклов (делегируется DAG)
func ValidateGraph(graph *domain.Graph, defs map[string]*domain.WorkNodeDefinition) error {
	if graph == nil || len(graph.Nodes) == 0 {
		return NewValidationError("", "nodes", "graph has no nodes", ErrEmptyGraph)
	}

	// 1. Узлы: ID и определения
	nodeDefs := make(map[string]*domain.WorkNodeDefinition, len(graph.Nodes))
	for i, n := range graph.Nodes {
		if n.ID == "" {
			return NewValidationError("", "id", fmt.Sprintf("node %d has empty ID", i), ErrEmptyNodeID)
		}
		if _, exists := nodeDefs[n.ID]; exists {
			return NewValidationError(n.ID, "id",
				fmt.Sprintf("duplicate node ID: %s", n.ID), ErrDuplicateNodeID)
		}
		def, ok := defs[n.Data.DefinitionID]
		if !ok {
			return NewValidationError(n.ID, "data.definition_id",
				fmt.Sprintf("unknown definition: %q", n.Data.DefinitionID), ErrUnknownDefinition)
		}
		nodeDefs[n.ID] = def
	}

	// 2. Рёбра: ID, тип, концы и совместимость сокетов
	edgeIDs := make(map[string]bool, len(graph.Edges))
	for _, e := range graph.Edges {
		if e.ID == "" {
			return NewEdgeError("", "id", fmt.Sprintf("edge %s→%s has empty ID", e.Source, e.Target), ErrEmptyEdgeID)
		}
		if edgeIDs[e.ID] {
			return NewEdgeError(e.ID, "id", fmt.Sprintf("duplicate edge ID: %s", e.ID), ErrDuplicateEdgeID)
		}
		edgeIDs[e.ID] = true

		if err := validateEdge(e, nodeDefs); err != nil {
			return err
		}
	}

	// 3. Структура: петли и циклы
	dag, err := BuildDAG(graph)
	if err != nil {
		return err
	}
	if len(dag.RootNodes) == 0 {
		return NewValidationError("", "nodes", "graph has no start nodes", ErrNoStartNodes)
	}

	return nil
}

// validateEdge проверяет концы одного ребра.
func validateEdge(e domain.Edge, nodeDefs map[string]*domain.WorkNodeDefinition) error {
	switch e.Type {
	case "", domain.EdgeTypeData, domain.EdgeTypeReference:
	default:
		return NewEdgeError(e.ID, "type", fmt.Sprintf("unknown edge type %q", e.Type), ErrUnknownEdgeType)
	}

	srcDef, ok := nodeDefs[e.Source]
	if !ok {
		return NewEdgeError(e.ID, "source", fmt.Sprintf("unknown source node: %s", e.Source), ErrUnknownNode)
	}
	dstDef, ok := nodeDefs[e.Target]
	if !ok {
		return NewEdgeError(e.ID, "target", fmt.Sprintf("unknown target node: %s", e.Target), ErrUnknownNode)
	}

	src, ok := srcDef.Handle(e.SourceHandle)
	if !ok {
		return NewEdgeError(e.ID, "source_handle",
			fmt.Sprintf("node %s has no handle %q", e.Source, e.SourceHandle), ErrUnknownHandle)
	}
	if src.Type != domain.HandleSource {
		return NewEdgeError(e.ID, "source_handle",
			fmt.Sprintf("handle %q is not a source handle", e.SourceHandle), ErrHandleDirection)
	}

	dst, ok := dstDef.Handle(e.TargetHandle)
	if !ok {
		return NewEdgeError(e.ID, "target_handle",
			fmt.Sprintf("node %s has no handle %q", e.Target, e.TargetHandle), ErrUnknownHandle)
	}
	if dst.Type != domain.HandleTarget {
		return NewEdgeError(e.ID, "target_handle",
			fmt.Sprintf("handle %q is not a target handle", e.TargetHandle), ErrHandleDirection)
	}

	if !dst.Accepts(src.SocketType) {
		return NewEdgeError(e.ID, "target_handle",
			fmt.Sprintf("socket %q not in %v", src.SocketType, dst.AllowedSocketTypes), ErrIncompatibleSocket)
	}

	return nil
}
