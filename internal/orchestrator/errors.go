package orchestrator

import (
	"errors"
	"fmt"

	"github.com/shaiso/actionflow/internal/repo"
)

// Ошибки оркестратора.
var (
	// ErrStatusMismatch — узел уже не в ожидаемом статусе (проиграли compare-and-set).
	ErrStatusMismatch = errors.New("node status mismatch")

	// ErrMissingNode — для узла графа нет записи instance node.
	ErrMissingNode = errors.New("instance node missing for graph node")
)

// NotFoundError — не найден blueprint, определение, instance или узел.
// Оборачивает repo.ErrNotFound, поэтому errors.Is(err, repo.ErrNotFound) == true.
type NotFoundError struct {
	Kind string // blueprint, definition, instance, instance node
	ID   string
}

// Error реализует интерфейс error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Unwrap возвращает repo.ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return repo.ErrNotFound
}

// ProtocolError — некорректный или несвоевременный вызов протокола управления.
type ProtocolError struct {
	NodeID  string
	Op      string // init, heartbeat, result
	Message string
}

// Error реализует интерфейс error.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s %s: %s", e.Op, e.NodeID, e.Message)
}

// notFound превращает repo.ErrNotFound в *NotFoundError, остальные ошибки оборачивает.
func notFound(kind, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

// isMismatch проверяет, проиграли ли compare-and-set статуса.
func isMismatch(err error) bool {
	return errors.Is(err, ErrStatusMismatch)
}
