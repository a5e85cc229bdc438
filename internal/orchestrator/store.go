package orchestrator

import (
	"context"
	"time"

	"github.com/shaiso/actionflow/internal/dispatch"
	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/mq"
)

// Store — хранилище документов, с которым работает Orchestrator.
//
// Реализации: repo.Store (PostgreSQL) и memory.Store.
// Отсутствующие записи возвращают repo.ErrNotFound.
type Store interface {
	GetBlueprint(ctx context.Context, id string) (*domain.Blueprint, error)
	GetDefinition(ctx context.Context, id string) (*domain.WorkNodeDefinition, error)

	// CreateInstance атомарно сохраняет instance и все его узлы.
	CreateInstance(ctx context.Context, inst *domain.ActionInstance, nodes []*domain.InstanceNode) error
	GetInstance(ctx context.Context, id string) (*domain.ActionInstance, error)

	// UpdateInstance сохраняет instance, если версия в хранилище равна inst.Version.
	// При успехе inst.Version увеличивается, иначе возвращается repo.ErrConflict.
	UpdateInstance(ctx context.Context, inst *domain.ActionInstance) error

	GetNode(ctx context.Context, id string) (*domain.InstanceNode, error)
	ListNodes(ctx context.Context, instanceID string) ([]*domain.InstanceNode, error)

	// UpdateNode сохраняет узел, если версия в хранилище равна node.Version.
	// При успехе node.Version увеличивается, иначе возвращается repo.ErrConflict.
	UpdateNode(ctx context.Context, node *domain.InstanceNode) error

	// ListStaleNodes возвращает RUNNING узлы с heartbeat раньше before.
	ListStaleNodes(ctx context.Context, before time.Time, limit int) ([]*domain.InstanceNode, error)
}

// Dispatcher отправляет задания на запуск worker'ов.
type Dispatcher interface {
	Submit(ctx context.Context, job dispatch.Job) error
}

// EventPublisher получает уведомления о завершении instances.
type EventPublisher interface {
	PublishInstanceFinished(ctx context.Context, payload mq.InstanceFinishedPayload) error
}
