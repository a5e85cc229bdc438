package api

import (
	"net/http"

	"github.com/shaiso/actionflow/internal/orchestrator"
)

// InitNode отдаёт worker'у конфигурацию, входы и выходы узла.
// GET /action/sdk/{id}/init
func (h *Handler) InitNode(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.NodeConfig(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, "node not found") {
		return
	}

	JSON(w, http.StatusOK, snap)
}

// NodeHeartbeat фиксирует прогресс и возвращает директиву continue или stop.
// POST /action/sdk/{id}/heartbeat
func (h *Handler) NodeHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		BadRequest(w, "progress must be within [0, 100]")
		return
	}

	action, err := h.engine.Heartbeat(r.Context(), r.PathValue("id"), req.Progress, req.Message)
	if HandleError(w, r, err, "node not found") {
		return
	}

	JSON(w, http.StatusOK, HeartbeatResponse{Action: action})
}

// NodeResult принимает итог работы узла.
// Повторный RESULT для завершённого узла подтверждается его текущим статусом.
// POST /action/sdk/{id}/result
func (h *Handler) NodeResult(w http.ResponseWriter, r *http.Request) {
	var req ResultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		BadRequest(w, "status must be success or failed")
		return
	}

	status, err := h.engine.FinishNode(r.Context(), r.PathValue("id"), orchestrator.Result{
		Status:  req.Status,
		Outputs: req.Outputs,
		Error:   req.Error,
	})
	if HandleError(w, r, err, "node not found") {
		return
	}

	JSON(w, http.StatusOK, ResultResponse{Status: status})
}
