package domain

// InstanceStatus — статус выполнения instance.
//
// Жизненный цикл:
//
//	READY → RUNNING → COMPLETED
//	                ↘ FAILED
type InstanceStatus string

const (
	// InstanceStatusReady — instance создан, узлы инициализированы, но запуск ещё не начат.
	InstanceStatusReady InstanceStatus = "READY"

	// InstanceStatusRunning — instance в процессе выполнения.
	InstanceStatusRunning InstanceStatus = "RUNNING"

	// InstanceStatusCompleted — все узлы завершены успешно.
	InstanceStatusCompleted InstanceStatus = "COMPLETED"

	// InstanceStatusFailed — хотя бы один узел упал и дальнейший прогресс невозможен.
	InstanceStatusFailed InstanceStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (instance завершён).
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceStatusCompleted, InstanceStatusFailed:
		return true
	default:
		return false
	}
}

// NodeStatus — статус узла внутри instance.
//
// Жизненный цикл:
//
//	UNREADY → READY → RUNNING → COMPLETED
//	   │                      ↘ FAILED
//	   └────────────────────────→ FAILED (упал предок или instance отменён)
type NodeStatus string

const (
	// NodeStatusUnready — ждёт завершения предшественников.
	NodeStatusUnready NodeStatus = "UNREADY"

	// NodeStatusReady — все предшественники завершены, узел можно запускать.
	NodeStatusReady NodeStatus = "READY"

	// NodeStatusRunning — задания отправлены, worker выполняет узел.
	NodeStatusRunning NodeStatus = "RUNNING"

	// NodeStatusCompleted — worker сообщил об успехе.
	NodeStatusCompleted NodeStatus = "COMPLETED"

	// NodeStatusFailed — узел упал, был пропущен или снят по таймауту.
	NodeStatusFailed NodeStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusCompleted, NodeStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive возвращает true для узлов, которые ещё могут продвинуть instance.
func (s NodeStatus) IsActive() bool {
	return s == NodeStatusReady || s == NodeStatusRunning
}

// Причины падения узлов, которые записываются движком, а не worker'ом.
const (
	// ReasonAncestorFailed — узел не запускался, потому что упал один из предков.
	ReasonAncestorFailed = "skipped: ancestor failed"

	// ReasonTimeout — worker перестал присылать heartbeat.
	ReasonTimeout = "timeout"

	// ReasonCancelled — instance отменён оператором до запуска узла.
	ReasonCancelled = "cancelled"
)

// ResultStatus — статус, который worker присылает в RESULT.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

// Valid проверяет, что статус результата известен.
func (s ResultStatus) Valid() bool {
	return s == ResultSuccess || s == ResultFailed
}

// Directive — ответ движка на HEARTBEAT.
type Directive string

const (
	// DirectiveContinue — продолжать работу.
	DirectiveContinue Directive = "continue"

	// DirectiveStop — worker должен корректно завершиться.
	DirectiveStop Directive = "stop"
)
