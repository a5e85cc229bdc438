package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/actionflow/internal/domain"
)

// Store — хранилище ActionFlow поверх PostgreSQL.
//
// Объединяет репозитории в интерфейс, с которым работают
// orchestrator и API. Узлы и instances обновляются через
// compare-and-set по колонке version.
type Store struct {
	Definitions *DefinitionRepo
	Blueprints  *BlueprintRepo
	Instances   *InstanceRepo
	Nodes       *NodeRepo
}

// NewStore создаёт Store на пуле соединений.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Definitions: NewDefinitionRepo(pool),
		Blueprints:  NewBlueprintRepo(pool),
		Instances:   NewInstanceRepo(pool),
		Nodes:       NewNodeRepo(pool),
	}
}

func (s *Store) CreateDefinition(ctx context.Context, def *domain.WorkNodeDefinition) error {
	return s.Definitions.Create(ctx, def)
}

func (s *Store) GetDefinition(ctx context.Context, id string) (*domain.WorkNodeDefinition, error) {
	return s.Definitions.GetByID(ctx, id)
}

func (s *Store) ListDefinitions(ctx context.Context) ([]*domain.WorkNodeDefinition, error) {
	return s.Definitions.List(ctx)
}

func (s *Store) CreateBlueprint(ctx context.Context, bp *domain.Blueprint) error {
	return s.Blueprints.Create(ctx, bp)
}

func (s *Store) GetBlueprint(ctx context.Context, id string) (*domain.Blueprint, error) {
	return s.Blueprints.GetByID(ctx, id)
}

func (s *Store) ListBlueprints(ctx context.Context) ([]*domain.Blueprint, error) {
	return s.Blueprints.List(ctx)
}

func (s *Store) CreateInstance(ctx context.Context, inst *domain.ActionInstance, nodes []*domain.InstanceNode) error {
	return s.Instances.CreateWithNodes(ctx, inst, nodes)
}

func (s *Store) GetInstance(ctx context.Context, id string) (*domain.ActionInstance, error) {
	return s.Instances.GetByID(ctx, id)
}

func (s *Store) UpdateInstance(ctx context.Context, inst *domain.ActionInstance) error {
	return s.Instances.Update(ctx, inst)
}

func (s *Store) ListInstances(ctx context.Context, filter InstanceFilter) ([]*domain.ActionInstance, error) {
	return s.Instances.List(ctx, filter)
}

func (s *Store) GetNode(ctx context.Context, id string) (*domain.InstanceNode, error) {
	return s.Nodes.GetByID(ctx, id)
}

func (s *Store) ListNodes(ctx context.Context, instanceID string) ([]*domain.InstanceNode, error) {
	return s.Nodes.ListByInstance(ctx, instanceID)
}

func (s *Store) UpdateNode(ctx context.Context, n *domain.InstanceNode) error {
	return s.Nodes.Update(ctx, n)
}

func (s *Store) ListStaleNodes(ctx context.Context, before time.Time, limit int) ([]*domain.InstanceNode, error) {
	return s.Nodes.ListStale(ctx, before, limit)
}
