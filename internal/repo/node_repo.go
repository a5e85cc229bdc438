package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/actionflow/internal/domain"
)

// NodeRepo — репозиторий для работы с узлами instances.
type NodeRepo struct {
	pool *pgxpool.Pool
}

// NewNodeRepo создаёт новый NodeRepo.
func NewNodeRepo(pool *pgxpool.Pool) *NodeRepo {
	return &NodeRepo{pool: pool}
}

const nodeColumns = `
	id, instance_id, node_id, definition_id, status, config, inputs, outputs,
	reference_queues, cancel_requested, progress, message, error,
	last_heartbeat_at, started_at, finished_at, version
`

const insertNodeQuery = `
	INSERT INTO instance_nodes (` + nodeColumns + `, position)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
`

// GetByID возвращает узел по ID.
func (r *NodeRepo) GetByID(ctx context.Context, id string) (*domain.InstanceNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM instance_nodes WHERE id = $1`
	n, err := scanNode(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// ListByInstance возвращает узлы instance в порядке графа.
func (r *NodeRepo) ListByInstance(ctx context.Context, instanceID string) ([]*domain.InstanceNode, error) {
	query := `SELECT ` + nodeColumns + `
		FROM instance_nodes
		WHERE instance_id = $1
		ORDER BY position
	`
	return r.query(ctx, query, instanceID)
}

// ListStale возвращает RUNNING узлы с heartbeat раньше before, самые старые первыми.
func (r *NodeRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]*domain.InstanceNode, error) {
	query := `SELECT ` + nodeColumns + `
		FROM instance_nodes
		WHERE status = 'RUNNING'
		  AND (last_heartbeat_at IS NULL OR last_heartbeat_at < $1)
		ORDER BY last_heartbeat_at NULLS FIRST
		LIMIT $2
	`
	return r.query(ctx, query, before, limit)
}

// Update сохраняет узел, если версия в БД равна n.Version.
// При успехе n.Version увеличивается; при несовпадении — ErrConflict.
func (r *NodeRepo) Update(ctx context.Context, n *domain.InstanceNode) error {
	args, err := nodeArgs(n)
	if err != nil {
		return err
	}

	query := `
		UPDATE instance_nodes
		SET status = $2, config = $3, inputs = $4, outputs = $5, reference_queues = $6,
		    cancel_requested = $7, progress = $8, message = $9, error = $10,
		    last_heartbeat_at = $11, started_at = $12, finished_at = $13,
		    version = version + 1
		WHERE id = $1 AND version = $14
	`
	// instance_id, node_id и definition_id не меняются
	params := append([]any{args[0]}, args[4:]...)
	result, err := r.pool.Exec(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if result.RowsAffected() == 0 {
		return missOrConflict(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM instance_nodes WHERE id = $1)`, n.ID)
	}

	n.Version++
	return nil
}

func (r *NodeRepo) query(ctx context.Context, query string, args ...any) ([]*domain.InstanceNode, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]*domain.InstanceNode, 0)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// --- Helpers ---

// nodeArgs — параметры $1..$17 в порядке nodeColumns.
func nodeArgs(n *domain.InstanceNode) ([]any, error) {
	config, err := json.Marshal(n.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	inputs, err := json.Marshal(n.Inputs)
	if err != nil {
		return nil, fmt.Errorf("marshal inputs: %w", err)
	}
	outputs, err := json.Marshal(n.Outputs)
	if err != nil {
		return nil, fmt.Errorf("marshal outputs: %w", err)
	}
	queues, err := json.Marshal(n.ReferenceQueues)
	if err != nil {
		return nil, fmt.Errorf("marshal reference queues: %w", err)
	}

	return []any{
		n.ID,
		n.InstanceID,
		n.NodeID,
		n.DefinitionID,
		n.Status,
		config,
		inputs,
		outputs,
		queues,
		n.CancelRequested,
		n.Progress,
		nullString(n.Message),
		nullString(n.Error),
		n.LastHeartbeatAt,
		n.StartedAt,
		n.FinishedAt,
		n.Version,
	}, nil
}

func scanNode(row pgx.Row) (*domain.InstanceNode, error) {
	var n domain.InstanceNode
	var config, inputs, outputs, queues []byte
	var message, nodeError *string

	err := row.Scan(
		&n.ID,
		&n.InstanceID,
		&n.NodeID,
		&n.DefinitionID,
		&n.Status,
		&config,
		&inputs,
		&outputs,
		&queues,
		&n.CancelRequested,
		&n.Progress,
		&message,
		&nodeError,
		&n.LastHeartbeatAt,
		&n.StartedAt,
		&n.FinishedAt,
		&n.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}

	for _, col := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"config", config, &n.Config},
		{"inputs", inputs, &n.Inputs},
		{"outputs", outputs, &n.Outputs},
		{"reference_queues", queues, &n.ReferenceQueues},
	} {
		if len(col.data) == 0 {
			continue
		}
		if err := json.Unmarshal(col.data, col.dst); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", col.name, err)
		}
	}

	n.Message = derefString(message)
	n.Error = derefString(nodeError)
	return &n, nil
}
