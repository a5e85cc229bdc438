package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/actionflow/internal/sdk"
)

// ErrUnknownAction — в реестре нет действия с таким именем.
var ErrUnknownAction = errors.New("unknown action")

// ConfigAction — ключ конфигурации узла с именем действия.
const ConfigAction = "action"

// Executor — встроенное действие worker'а.
//
// Реализации: HTTPExecutor, DelayExecutor, TransformExecutor.
//
// node.Config содержит конфигурацию узла (form_data поверх значений
// по умолчанию определения), node.Inputs — входы от предшественников.
// Возвращённые outputs уходят в RESULT даже вместе с ошибкой.
type Executor interface {
	Execute(ctx context.Context, node *sdk.Node) (map[string]any, error)
}

// Registry — реестр действий по имени.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт реестр с действиями по умолчанию.
//
// Регистрирует: http, delay, transform.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("http", &HTTPExecutor{})
	r.Register("delay", &DelayExecutor{})
	r.Register("transform", &TransformExecutor{})
	return r
}

// Register добавляет действие.
func (r *Registry) Register(name string, executor Executor) {
	r.executors[name] = executor
}

// Get возвращает действие по имени.
func (r *Registry) Get(name string) (Executor, error) {
	executor, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return executor, nil
}

// Task возвращает sdk.Task, который выбирает действие по конфигурации
// узла (ключ "action"), а если ключа нет — использует fallback.
func (r *Registry) Task(fallback string) sdk.Task {
	return func(ctx context.Context, node *sdk.Node) (map[string]any, error) {
		name := getString(node.Config, ConfigAction, fallback)
		executor, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		return executor.Execute(ctx, node)
	}
}
