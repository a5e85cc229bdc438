package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ActionInstance — один запуск blueprint'а.
//
// Instance создаётся когда:
// - Оператор запускает blueprint через API/CLI
// - Вызов Init из кода (тесты, встроенный режим)
//
// Progress и FinishedNodeIDs только растут: узел, попавший в терминальное
// состояние, из него не выходит.
type ActionInstance struct {
	// ID — "<blueprint_id>-<unix_millis>-<hex>".
	ID string `json:"id"`

	// BlueprintID — ссылка на выполняемый blueprint.
	BlueprintID string `json:"blueprint_id"`

	// Status — текущий статус.
	Status InstanceStatus `json:"status"`

	// NodeIDs — ID всех узлов графа.
	NodeIDs []string `json:"node_ids"`

	// Progress — процент завершённых узлов, 0..100.
	Progress float64 `json:"progress"`

	// FinishedNodeIDs — ID узлов графа, которые завершились успешно.
	FinishedNodeIDs []string `json:"finished_node_ids"`

	// CancelRequested — оператор запросил остановку.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// Error — причина падения instance.
	Error string `json:"error,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	// Version — версия записи для оптимистичной блокировки.
	Version int64 `json:"-"`
}

// NewInstanceID генерирует ID instance для blueprint.
func NewInstanceID(blueprintID string, now time.Time) string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%s-%d-%s", blueprintID, now.UnixMilli(), hex.EncodeToString(b[:]))
}

// InstanceNodeID собирает ID узла instance.
func InstanceNodeID(instanceID, nodeID string) string {
	return instanceID + "." + nodeID
}

// ReferenceQueue — имя канала для ссылочного ребра.
func ReferenceQueue(instanceID, edgeID string) string {
	return "actionflow.ref." + instanceID + "." + edgeID
}

// IsFinished возвращает true, если instance завершён (в любом статусе).
func (i *ActionInstance) IsFinished() bool {
	return i.Status.IsTerminal()
}

// Duration возвращает продолжительность выполнения.
func (i *ActionInstance) Duration() time.Duration {
	if i.StartedAt == nil || i.FinishedAt == nil {
		return 0
	}
	return i.FinishedAt.Sub(*i.StartedAt)
}

// MarkRunning переводит instance в статус RUNNING.
func (i *ActionInstance) MarkRunning() {
	now := time.Now()
	i.Status = InstanceStatusRunning
	i.StartedAt = &now
}

// MarkCompleted переводит instance в статус COMPLETED.
func (i *ActionInstance) MarkCompleted() {
	now := time.Now()
	i.Status = InstanceStatusCompleted
	i.FinishedAt = &now
}

// MarkFailed переводит instance в статус FAILED.
func (i *ActionInstance) MarkFailed(reason string) {
	now := time.Now()
	i.Status = InstanceStatusFailed
	i.FinishedAt = &now
	i.Error = reason
}

// InstanceNode — состояние одного узла графа внутри instance.
type InstanceNode struct {
	// ID — "<instance_id>.<node_id>".
	ID string `json:"id"`

	InstanceID   string `json:"action_id"`
	NodeID       string `json:"node_id"`
	DefinitionID string `json:"definition_id"`

	// Status — текущий статус узла.
	Status NodeStatus `json:"status"`

	// Config — form_data узла поверх DefaultConfigs определения.
	Config Configs `json:"config,omitempty"`

	// Inputs — значения, полученные от предшественников по target-handle.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Outputs — результаты, присланные worker'ом.
	Outputs map[string]any `json:"outputs,omitempty"`

	// ReferenceQueues — handle ID → имя канала для ссылочных рёбер.
	ReferenceQueues map[string]string `json:"reference_queues,omitempty"`

	// CancelRequested — следующий heartbeat вернёт stop.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// Progress — последний прогресс из HEARTBEAT.
	Progress float64 `json:"progress"`

	// Message — последнее сообщение из HEARTBEAT.
	Message string `json:"message,omitempty"`

	// Error — причина падения.
	Error string `json:"error,omitempty"`

	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`

	// Version — версия записи, растёт при каждом сохранении.
	Version int64 `json:"-"`
}

// NewInstanceNode создаёт узел instance в статусе UNREADY.
func NewInstanceNode(instanceID string, node Node, def *WorkNodeDefinition) *InstanceNode {
	return &InstanceNode{
		ID:           InstanceNodeID(instanceID, node.ID),
		InstanceID:   instanceID,
		NodeID:       node.ID,
		DefinitionID: def.ID,
		Status:       NodeStatusUnready,
		Config:       node.Data.FormData.Merge(def.DefaultConfigs),
	}
}

// MarkReady переводит узел в READY.
func (n *InstanceNode) MarkReady() {
	n.Status = NodeStatusReady
}

// MarkRunning переводит узел в RUNNING и сбрасывает отсчёт heartbeat.
func (n *InstanceNode) MarkRunning() {
	now := time.Now()
	n.Status = NodeStatusRunning
	n.StartedAt = &now
	n.LastHeartbeatAt = &now
}

// MarkCompleted переводит узел в COMPLETED.
func (n *InstanceNode) MarkCompleted(outputs map[string]any) {
	now := time.Now()
	n.Status = NodeStatusCompleted
	n.Outputs = outputs
	n.Progress = 100
	n.FinishedAt = &now
}

// MarkFailed переводит узел в FAILED.
func (n *InstanceNode) MarkFailed(reason string) {
	now := time.Now()
	n.Status = NodeStatusFailed
	n.Error = reason
	n.FinishedAt = &now
}

// AddReferenceQueue привязывает канал к handle.
func (n *InstanceNode) AddReferenceQueue(handleID, queue string) {
	if n.ReferenceQueues == nil {
		n.ReferenceQueues = make(map[string]string)
	}
	n.ReferenceQueues[handleID] = queue
}

// Touch фиксирует heartbeat.
func (n *InstanceNode) Touch(progress float64, message string) {
	now := time.Now()
	n.Progress = progress
	if message != "" {
		n.Message = message
	}
	n.LastHeartbeatAt = &now
}
