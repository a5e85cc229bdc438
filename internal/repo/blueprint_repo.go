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

// BlueprintRepo — репозиторий для работы с blueprints.
type BlueprintRepo struct {
	pool *pgxpool.Pool
}

// NewBlueprintRepo создаёт новый BlueprintRepo.
func NewBlueprintRepo(pool *pgxpool.Pool) *BlueprintRepo {
	return &BlueprintRepo{pool: pool}
}

// Create сохраняет blueprint. Повторный ID — ErrAlreadyExists.
func (r *BlueprintRepo) Create(ctx context.Context, bp *domain.Blueprint) error {
	graphJSON, err := json.Marshal(bp.Graph)
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}

	query := `
		INSERT INTO blueprints (id, version, name, graph, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query, bp.ID, bp.Version, bp.Name, graphJSON, bp.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert blueprint: %w", err)
	}
	return nil
}

// GetByID возвращает blueprint по ID.
func (r *BlueprintRepo) GetByID(ctx context.Context, id string) (*domain.Blueprint, error) {
	query := `
		SELECT id, version, name, graph, created_at
		FROM blueprints
		WHERE id = $1
	`
	bp, err := scanBlueprint(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return bp, err
}

// List возвращает blueprints, новые первыми.
func (r *BlueprintRepo) List(ctx context.Context) ([]*domain.Blueprint, error) {
	query := `
		SELECT id, version, name, graph, created_at
		FROM blueprints
		ORDER BY created_at DESC, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list blueprints: %w", err)
	}
	defer rows.Close()

	bps := make([]*domain.Blueprint, 0)
	for rows.Next() {
		bp, err := scanBlueprint(rows)
		if err != nil {
			return nil, err
		}
		bps = append(bps, bp)
	}
	return bps, rows.Err()
}

func scanBlueprint(row pgx.Row) (*domain.Blueprint, error) {
	var bp domain.Blueprint
	var graphJSON []byte

	err := row.Scan(&bp.ID, &bp.Version, &bp.Name, &graphJSON, &bp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan blueprint: %w", err)
	}

	if err := json.Unmarshal(graphJSON, &bp.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return &bp, nil
}
