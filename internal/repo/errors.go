package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки хранилища. Их же возвращает repo/memory.
var (
	// ErrNotFound — записи с таким ID нет.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — ID уже занят.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — переход запрещён текущим статусом instance или узла.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict — версия записи изменилась после чтения; вызывающий
	// перечитывает запись и повторяет переход.
	ErrConflict = errors.New("version conflict")
)

// sqlStateUniqueViolation — SQLSTATE нарушения уникального индекса.
const sqlStateUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

// missOrConflict объясняет UPDATE без затронутых строк: записи нет
// (ErrNotFound) или её версия ушла вперёд (ErrConflict).
// query проверяет существование записи по id.
func missOrConflict(ctx context.Context, pool *pgxpool.Pool, query, id string) error {
	var exists bool
	if err := pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}
