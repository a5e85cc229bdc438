package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SweeperLockKey — ключ advisory lock для sweeper'а зависших узлов.
const SweeperLockKey int64 = 424242

// AdvisoryLeader — выбор лидера через pg_try_advisory_lock.
//
// Advisory lock принадлежит сессии, поэтому лидер держит одно
// соединение из пула, пока не вызван Release или соединение не потеряно.
type AdvisoryLeader struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewAdvisoryLeader создаёт AdvisoryLeader.
func NewAdvisoryLeader(pool *pgxpool.Pool, key int64) *AdvisoryLeader {
	return &AdvisoryLeader{pool: pool, key: key}
}

// TryLead пытается стать лидером или подтверждает лидерство.
func (l *AdvisoryLeader) TryLead(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		if err := l.conn.Ping(ctx); err == nil {
			return true, nil
		}
		// Соединение потеряно вместе с блокировкой
		l.conn.Release()
		l.conn = nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release снимает блокировку и возвращает соединение в пул.
func (l *AdvisoryLeader) Release(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(ctx, "select pg_advisory_unlock($1)", l.key)
	l.conn.Release()
	l.conn = nil
}
