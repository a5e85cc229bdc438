package cli

import (
	"fmt"
	"os"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/engine"
)

// readDefinition читает и валидирует определение узла из YAML или JSON файла.
func readDefinition(path string) (*domain.WorkNodeDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return engine.ParseDefinition(data, engine.DetectFormat(path))
}

// readBlueprint читает blueprint из YAML или JSON файла.
// Граф валидирует сервер: ему известны все определения.
func readBlueprint(path string) (*domain.Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint file: %w", err)
	}
	bp, err := engine.ParseBlueprint(data, engine.DetectFormat(path))
	if err != nil {
		return nil, err
	}
	if len(bp.Graph.Nodes) == 0 {
		return nil, fmt.Errorf("blueprint file %s has no nodes", path)
	}
	return bp, nil
}
