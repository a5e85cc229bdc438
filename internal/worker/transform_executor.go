package worker

import (
	"context"
	"maps"

	"github.com/shaiso/actionflow/internal/sdk"
)

// TransformExecutor — действие "transform".
//
// Передаёт входы узла в outputs под теми же именами и дополняет их
// значениями из config.set. Значения из set имеют приоритет.
//
// Config:
//   - set (object): outputs, которые нужно добавить или перекрыть
type TransformExecutor struct{}

// Execute возвращает входы и config.set как outputs.
func (e *TransformExecutor) Execute(_ context.Context, node *sdk.Node) (map[string]any, error) {
	outputs := make(map[string]any, len(node.Inputs))
	maps.Copy(outputs, node.Inputs)

	if set, ok := node.Config["set"].(map[string]any); ok {
		maps.Copy(outputs, set)
	}
	return outputs, nil
}
