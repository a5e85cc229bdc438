package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/actionflow/internal/domain"
)

// InstanceRepo — репозиторий для работы с action instances.
type InstanceRepo struct {
	pool *pgxpool.Pool
}

// NewInstanceRepo создаёт новый InstanceRepo.
func NewInstanceRepo(pool *pgxpool.Pool) *InstanceRepo {
	return &InstanceRepo{pool: pool}
}

// InstanceFilter — параметры фильтрации instances.
type InstanceFilter struct {
	BlueprintID string
	Status      domain.InstanceStatus
	Limit       int
	Offset      int
}

const instanceColumns = `
	id, blueprint_id, status, node_ids, finished_node_ids, progress,
	cancel_requested, error, started_at, finished_at, created_at, version
`

// CreateWithNodes создаёт instance и все его узлы в одной транзакции.
func (r *InstanceRepo) CreateWithNodes(ctx context.Context, inst *domain.ActionInstance, nodes []*domain.InstanceNode) error {
	nodeIDs, err := json.Marshal(inst.NodeIDs)
	if err != nil {
		return fmt.Errorf("marshal node ids: %w", err)
	}
	finished, err := json.Marshal(inst.FinishedNodeIDs)
	if err != nil {
		return fmt.Errorf("marshal finished node ids: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO action_instances (id, blueprint_id, status, node_ids, finished_node_ids,
		                              progress, cancel_requested, error, started_at, finished_at,
		                              created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.Exec(ctx, query,
		inst.ID,
		inst.BlueprintID,
		inst.Status,
		nodeIDs,
		finished,
		inst.Progress,
		inst.CancelRequested,
		nullString(inst.Error),
		inst.StartedAt,
		inst.FinishedAt,
		inst.CreatedAt,
		inst.Version,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}

	batch := &pgx.Batch{}
	for i, n := range nodes {
		args, err := nodeArgs(n)
		if err != nil {
			return err
		}
		batch.Queue(insertNodeQuery, append(args, i)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert nodes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает instance по ID.
func (r *InstanceRepo) GetByID(ctx context.Context, id string) (*domain.ActionInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM action_instances WHERE id = $1`
	inst, err := scanInstance(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inst, err
}

// List возвращает instances с фильтрацией, новые первыми.
func (r *InstanceRepo) List(ctx context.Context, filter InstanceFilter) ([]*domain.ActionInstance, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + instanceColumns + `
		FROM action_instances
		WHERE ($1::text IS NULL OR blueprint_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.BlueprintID),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.ActionInstance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Update сохраняет instance, если версия в БД равна inst.Version.
// При успехе inst.Version увеличивается; при несовпадении — ErrConflict.
func (r *InstanceRepo) Update(ctx context.Context, inst *domain.ActionInstance) error {
	finished, err := json.Marshal(inst.FinishedNodeIDs)
	if err != nil {
		return fmt.Errorf("marshal finished node ids: %w", err)
	}

	query := `
		UPDATE action_instances
		SET status = $3, finished_node_ids = $4, progress = $5, cancel_requested = $6,
		    error = $7, started_at = $8, finished_at = $9, version = version + 1
		WHERE id = $1 AND version = $2
	`
	result, err := r.pool.Exec(ctx, query,
		inst.ID,
		inst.Version,
		inst.Status,
		finished,
		inst.Progress,
		inst.CancelRequested,
		nullString(inst.Error),
		inst.StartedAt,
		inst.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return missOrConflict(ctx, r.pool, `SELECT EXISTS (SELECT 1 FROM action_instances WHERE id = $1)`, inst.ID)
	}

	inst.Version++
	return nil
}

func scanInstance(row pgx.Row) (*domain.ActionInstance, error) {
	var inst domain.ActionInstance
	var nodeIDs, finished []byte
	var instError *string

	err := row.Scan(
		&inst.ID,
		&inst.BlueprintID,
		&inst.Status,
		&nodeIDs,
		&finished,
		&inst.Progress,
		&inst.CancelRequested,
		&instError,
		&inst.StartedAt,
		&inst.FinishedAt,
		&inst.CreatedAt,
		&inst.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan instance: %w", err)
	}

	if err := json.Unmarshal(nodeIDs, &inst.NodeIDs); err != nil {
		return nil, fmt.Errorf("unmarshal node ids: %w", err)
	}
	if err := json.Unmarshal(finished, &inst.FinishedNodeIDs); err != nil {
		return nil, fmt.Errorf("unmarshal finished node ids: %w", err)
	}
	inst.Error = derefString(instError)

	return &inst, nil
}
