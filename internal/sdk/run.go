package sdk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// ErrStopped — движок ответил stop на heartbeat, работа прервана.
var ErrStopped = errors.New("stopped by engine")

const (
	defaultHeartbeatInterval = 5 * time.Second
	resultTimeout            = 30 * time.Second
)

// Task — работа узла. Возвращает outputs для RESULT.
type Task func(ctx context.Context, node *Node) (map[string]any, error)

// Node — данные узла, доступные работе, и отчёт о прогрессе.
type Node struct {
	ID string
	Snapshot

	mu       sync.Mutex
	progress float64
	message  string
}

// Report запоминает прогресс; он уйдёт со следующим heartbeat.
func (n *Node) Report(progress float64, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.progress = min(max(progress, 0), 100)
	n.message = message
}

func (n *Node) current() (float64, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.progress, n.message
}

// Run выполняет fn как работу узла по протоколу управления.
//
// 1. INIT — получает конфигурацию.
// 2. Пока fn работает, раз в interval шлёт HEARTBEAT. Ответ stop
// отменяет контекст fn.
// 3. Отправляет RESULT: success с outputs или failed с текстом ошибки.
//
// Возвращает ошибку fn, ErrStopped, если работа прервана движком,
// или ошибку протокола.
func Run(ctx context.Context, client *Client, interval time.Duration, fn Task) error {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	logger := telemetry.WithNodeID(telemetry.FromContext(ctx), client.NodeID())

	snap, err := client.Init(ctx)
	if err != nil {
		return err
	}
	node := &Node{ID: client.NodeID(), Snapshot: *snap}

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	var (
		stopped bool
		wg      sync.WaitGroup
		hbDone  = make(chan struct{})
	)

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-hbDone:
				return
			case <-workCtx.Done():
				return
			case <-ticker.C:
			}

			progress, message := node.current()
			action, err := client.Heartbeat(workCtx, progress, message)
			if err != nil {
				if workCtx.Err() == nil {
					logger.Warn("heartbeat failed", "error", err)
				}
				continue
			}
			if action == domain.DirectiveStop {
				logger.Info("engine requested stop")
				stopped = true
				cancelWork()
				return
			}
		}
	}()

	outputs, runErr := fn(workCtx, node)

	close(hbDone)
	wg.Wait()

	result := Result{Status: domain.ResultSuccess, Outputs: outputs}
	if runErr != nil || stopped {
		result = Result{Status: domain.ResultFailed, Outputs: outputs}
		switch {
		case runErr != nil:
			result.Error = runErr.Error()
		default:
			result.Error = ErrStopped.Error()
		}
	}

	// Результат отправляется даже после отмены ctx
	resultCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resultTimeout)
	defer cancel()

	status, err := client.Result(resultCtx, result)
	if err != nil {
		return err
	}
	logger.Info("result reported", "result", result.Status, "node_status", status)

	if stopped {
		return ErrStopped
	}
	return runErr
}
