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

// DefinitionRepo — репозиторий для работы с определениями узлов.
//
// Определение хранится целиком в JSONB-колонке document,
// id/version/name продублированы в колонки для списков.
type DefinitionRepo struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepo создаёт новый DefinitionRepo.
func NewDefinitionRepo(pool *pgxpool.Pool) *DefinitionRepo {
	return &DefinitionRepo{pool: pool}
}

// Create сохраняет определение. Повторный ID — ErrAlreadyExists.
func (r *DefinitionRepo) Create(ctx context.Context, def *domain.WorkNodeDefinition) error {
	doc, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	query := `
		INSERT INTO definitions (id, version, name, document, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query, def.ID, def.Version, def.Name, doc, def.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert definition: %w", err)
	}
	return nil
}

// GetByID возвращает определение по ID.
func (r *DefinitionRepo) GetByID(ctx context.Context, id string) (*domain.WorkNodeDefinition, error) {
	query := `SELECT document, created_at FROM definitions WHERE id = $1`
	def, err := scanDefinition(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return def, err
}

// List возвращает определения, отсортированные по ID.
func (r *DefinitionRepo) List(ctx context.Context) ([]*domain.WorkNodeDefinition, error) {
	rows, err := r.pool.Query(ctx, `SELECT document, created_at FROM definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]*domain.WorkNodeDefinition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanDefinition(row pgx.Row) (*domain.WorkNodeDefinition, error) {
	var doc []byte
	var createdAt time.Time
	if err := row.Scan(&doc, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan definition: %w", err)
	}

	var def domain.WorkNodeDefinition
	if err := json.Unmarshal(doc, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	def.CreatedAt = createdAt
	return &def, nil
}
