package api

import (
	"time"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/engine"
	"github.com/shaiso/actionflow/internal/orchestrator"
)

// Blueprint DTOs

// BlueprintResponse — blueprint целиком вместе с вычисляемыми метриками.
type BlueprintResponse struct {
	domain.Blueprint
	engine.Summary
}

// BlueprintSummaryResponse — элемент списка blueprints.
type BlueprintSummaryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Steps     int       `json:"steps"`
	Branches  int       `json:"branches"`
	CreatedAt time.Time `json:"created_at"`
}

// BlueprintSummaryFromDomain конвертирует blueprint и его Summary в элемент списка.
func BlueprintSummaryFromDomain(bp *domain.Blueprint, s engine.Summary) BlueprintSummaryResponse {
	return BlueprintSummaryResponse{
		ID:        bp.ID,
		Name:      bp.Name,
		Version:   bp.Version,
		Steps:     s.Steps,
		Branches:  s.Branches,
		CreatedAt: bp.CreatedAt,
	}
}

// Instance DTOs

// InstanceResponse — instance со сводкой по статусам узлов.
type InstanceResponse struct {
	domain.ActionInstance
	Nodes *orchestrator.NodeStats `json:"nodes,omitempty"`
}

// InstanceFromState конвертирует снимок оркестратора в InstanceResponse.
func InstanceFromState(s *orchestrator.InstanceState) InstanceResponse {
	stats := s.Stats()
	return InstanceResponse{ActionInstance: *s.Instance, Nodes: &stats}
}

// Worker protocol DTOs

// HeartbeatRequest — тело HEARTBEAT.
type HeartbeatRequest struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

// HeartbeatResponse — директива для worker'а.
type HeartbeatResponse struct {
	Action domain.Directive `json:"action"`
}

// ResultRequest — тело RESULT.
type ResultRequest struct {
	Status  domain.ResultStatus `json:"status"`
	Outputs map[string]any      `json:"outputs,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ResultResponse — подтверждение RESULT со статусом узла после обработки.
type ResultResponse struct {
	Status domain.NodeStatus `json:"status"`
}
