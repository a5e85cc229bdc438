package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/orchestrator"
	"github.com/shaiso/actionflow/internal/repo"
)

// Store — хранилище, которое читает и пополняет API.
type Store interface {
	CreateDefinition(ctx context.Context, def *domain.WorkNodeDefinition) error
	GetDefinition(ctx context.Context, id string) (*domain.WorkNodeDefinition, error)
	ListDefinitions(ctx context.Context) ([]*domain.WorkNodeDefinition, error)

	CreateBlueprint(ctx context.Context, bp *domain.Blueprint) error
	GetBlueprint(ctx context.Context, id string) (*domain.Blueprint, error)
	ListBlueprints(ctx context.Context) ([]*domain.Blueprint, error)

	GetInstance(ctx context.Context, id string) (*domain.ActionInstance, error)
	ListInstances(ctx context.Context, filter repo.InstanceFilter) ([]*domain.ActionInstance, error)
	ListNodes(ctx context.Context, instanceID string) ([]*domain.InstanceNode, error)
}

// Engine — операции оркестратора, доступные через API.
type Engine interface {
	Init(ctx context.Context, blueprintID string) (*domain.ActionInstance, error)
	Start(ctx context.Context, instanceID string) (*domain.ActionInstance, error)
	Cancel(ctx context.Context, instanceID string) (*domain.ActionInstance, error)
	State(ctx context.Context, instanceID string) (*orchestrator.InstanceState, error)

	NodeConfig(ctx context.Context, nodeID string) (*orchestrator.NodeSnapshot, error)
	Heartbeat(ctx context.Context, nodeID string, progress float64, message string) (domain.Directive, error)
	FinishNode(ctx context.Context, nodeID string, result orchestrator.Result) (domain.NodeStatus, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store  Store
	engine Engine
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store  Store
	Engine Engine
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  cfg.Store,
		engine: cfg.Engine,
		logger: logger.With("component", "api"),
	}
}
