package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/actionflow/internal/domain"
)

// testDefinitions — определения: "step" (in/out text), "image" (out image), "reader" (in text only).
func testDefinitions() map[string]*domain.WorkNodeDefinition {
	return map[string]*domain.WorkNodeDefinition{
		"step": {
			ID: "step",
			Handles: []domain.Handle{
				{ID: "in", Type: domain.HandleTarget, SocketType: "text"},
				{ID: "out", Type: domain.HandleSource, SocketType: "text"},
			},
			Command: "step",
		},
		"image": {
			ID: "image",
			Handles: []domain.Handle{
				{ID: "out", Type: domain.HandleSource, SocketType: "image"},
			},
			Command: "image",
		},
		"reader": {
			ID: "reader",
			Handles: []domain.Handle{
				{ID: "in", Type: domain.HandleTarget, AllowedSocketTypes: []string{"text"}},
			},
			Command: "reader",
		},
	}
}

func TestValidateGraph_Valid(t *testing.T) {
	g := graphOf([]string{"start", "A", "B", "C"}, "start>A", "start>B", "A>C", "B>C")

	if err := ValidateGraph(g, testDefinitions()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateGraph_Errors(t *testing.T) {
	tests := []struct {
		name     string
		graph    func() *domain.Graph
		expected error
	}{
		{
			name:     "empty graph",
			graph:    func() *domain.Graph { return &domain.Graph{} },
			expected: ErrEmptyGraph,
		},
		{
			name:     "duplicate node",
			graph:    func() *domain.Graph { return graphOf([]string{"A", "A"}) },
			expected: ErrDuplicateNodeID,
		},
		{
			name: "unknown definition",
			graph: func() *domain.Graph {
				g := graphOf([]string{"A"})
				g.Nodes[0].Data.DefinitionID = "missing"
				return g
			},
			expected: ErrUnknownDefinition,
		},
		{
			name:     "dangling edge target",
			graph:    func() *domain.Graph { return graphOf([]string{"A"}, "A>ghost") },
			expected: ErrUnknownNode,
		},
		{
			name:     "dangling edge source",
			graph:    func() *domain.Graph { return graphOf([]string{"A"}, "ghost>A") },
			expected: ErrUnknownNode,
		},
		{
			name: "unknown handle",
			graph: func() *domain.Graph {
				g := graphOf([]string{"A", "B"}, "A>B")
				g.Edges[0].TargetHandle = "nope"
				return g
			},
			expected: ErrUnknownHandle,
		},
		{
			name: "target handle used as source",
			graph: func() *domain.Graph {
				g := graphOf([]string{"A", "B"}, "A>B")
				g.Edges[0].SourceHandle = "in"
				return g
			},
			expected: ErrHandleDirection,
		},
		{
			name: "incompatible sockets",
			graph: func() *domain.Graph {
				g := graphOf([]string{"img", "read"}, "img>read")
				g.Nodes[0].Data.DefinitionID = "image"
				g.Nodes[1].Data.DefinitionID = "reader"
				return g
			},
			expected: ErrIncompatibleSocket,
		},
		{
			name: "duplicate edge id",
			graph: func() *domain.Graph {
				g := graphOf([]string{"A", "B", "C"}, "A>B", "B>C")
				g.Edges[1].ID = g.Edges[0].ID
				return g
			},
			expected: ErrDuplicateEdgeID,
		},
		{
			name: "unknown edge type",
			graph: func() *domain.Graph {
				g := graphOf([]string{"A", "B"}, "A>B")
				g.Edges[0].Type = "pipe"
				return g
			},
			expected: ErrUnknownEdgeType,
		},
		{
			name:     "self loop",
			graph:    func() *domain.Graph { return graphOf([]string{"A"}, "A>A") },
			expected: ErrSelfLoop,
		},
		{
			name:     "cycle",
			graph:    func() *domain.Graph { return graphOf([]string{"R", "A", "B"}, "R>A", "A>B", "B>A") },
			expected: ErrCyclicGraph,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGraph(tt.graph(), testDefinitions())
			if !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateGraph_CompatibleSockets(t *testing.T) {
	g := graphOf([]string{"A", "read"}, "A>read")
	g.Nodes[1].Data.DefinitionID = "reader"

	if err := ValidateGraph(g, testDefinitions()); err != nil {
		t.Errorf("text → reader should be accepted, got %v", err)
	}
}

func TestValidateDefinition(t *testing.T) {
	tests := []struct {
		name     string
		def      *domain.WorkNodeDefinition
		expected error
	}{
		{name: "nil", def: nil, expected: ErrEmptyDefinitionID},
		{name: "empty id", def: &domain.WorkNodeDefinition{Command: "x"}, expected: ErrEmptyDefinitionID},
		{name: "no command", def: &domain.WorkNodeDefinition{ID: "d"}, expected: ErrNoExecutables},
		{
			name: "bad handle type",
			def: &domain.WorkNodeDefinition{
				ID:      "d",
				Command: "x",
				Handles: []domain.Handle{{ID: "h", Type: "sideways"}},
			},
			expected: ErrInvalidHandle,
		},
		{
			name: "duplicate handle",
			def: &domain.WorkNodeDefinition{
				ID:      "d",
				Command: "x",
				Handles: []domain.Handle{
					{ID: "h", Type: domain.HandleSource},
					{ID: "h", Type: domain.HandleTarget},
				},
			},
			expected: ErrInvalidHandle,
		},
		{
			name: "executable without command",
			def: &domain.WorkNodeDefinition{
				ID:          "d",
				Executables: []domain.Executable{{ID: "e"}},
			},
			expected: ErrNoExecutables,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefinition(tt.def)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestParseDefinition_YAML(t *testing.T) {
	data := []byte(`
id: fetch-page
version: 1
handles:
  - id: url
    type: target
    socket_type: text
  - id: page
    type: source
    socket_type: html
default_configs:
  - key: timeout
    value: 30
executables:
  - id: fetcher
    command: /usr/bin/fetch
    args: ["--node", "{{ .NodeID }}"]
`)

	def, err := ParseDefinition(data, FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.ID != "fetch-page" {
		t.Errorf("expected id fetch-page, got %s", def.ID)
	}
	if len(def.Handles) != 2 {
		t.Errorf("expected 2 handles, got %d", len(def.Handles))
	}
	if v, ok := def.DefaultConfigs.Lookup("timeout"); !ok || v != 30 {
		t.Errorf("expected timeout=30, got %v", v)
	}
	execs := def.RelatedExecutables()
	if len(execs) != 1 || execs[0].Args[1] != "{{ .NodeID }}" {
		t.Errorf("unexpected executables %+v", execs)
	}
}

func TestParseBlueprint_JSON(t *testing.T) {
	data := []byte(`{
		"name": "crawl",
		"version": 1,
		"graph": {
			"nodes": [
				{"id": "start", "position": {"x": 0, "y": 0}, "data": {"definition_id": "step"}},
				{"id": "A", "position": {"x": 100, "y": 0}, "data": {"definition_id": "step",
					"form_data": [{"key": "url", "value": "https://example.com"}]}}
			],
			"edges": [
				{"id": "e1", "source": "start", "source_handle": "out", "target": "A", "target_handle": "in"}
			],
			"viewport": {"x": 0, "y": 0, "zoom": 1}
		}
	}`)

	bp, err := ParseBlueprint(data, FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bp.Graph.Nodes) != 2 || len(bp.Graph.Edges) != 1 {
		t.Fatalf("unexpected graph %+v", bp.Graph)
	}
	if v, _ := bp.Graph.Nodes[1].Data.FormData.Lookup("url"); v != "https://example.com" {
		t.Errorf("unexpected form_data %v", bp.Graph.Nodes[1].Data.FormData)
	}
	if err := ValidateGraph(&bp.Graph, testDefinitions()); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := ParseBlueprint([]byte("{}"), Format("toml"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"bp.yaml":   FormatYAML,
		"bp.YML":    FormatYAML,
		"bp.json":   FormatJSON,
		"bp":        FormatJSON,
		"dir/x.yml": FormatYAML,
	}
	for name, expected := range tests {
		if got := DetectFormat(name); got != expected {
			t.Errorf("%s: expected %s, got %s", name, expected, got)
		}
	}
}
