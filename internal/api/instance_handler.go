package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/repo"
)

// ListInstances возвращает instances с фильтрацией.
// GET /api/v1/instances?blueprint_id=...&status=...&limit=...&offset=...
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.InstanceFilter{
		BlueprintID: q.Get("blueprint_id"),
		Limit:       50,
	}

	if status := q.Get("status"); status != "" {
		switch s := domain.InstanceStatus(status); s {
		case domain.InstanceStatusReady, domain.InstanceStatusRunning,
			domain.InstanceStatusCompleted, domain.InstanceStatusFailed:
			filter.Status = s
		default:
			BadRequest(w, "invalid status")
			return
		}
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	instances, err := h.store.ListInstances(r.Context(), filter)
	if HandleError(w, r, err, "") {
		return
	}

	result := make([]InstanceResponse, len(instances))
	for i, inst := range instances {
		result[i] = InstanceResponse{ActionInstance: *inst}
	}

	List(w, result, len(result))
}

// CreateInstance создаёт instance blueprint'а.
// POST /api/v1/blueprints/{id}/instances[?start=true]
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	start := false
	if v := r.URL.Query().Get("start"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "invalid start flag")
			return
		}
		start = b
	}

	inst, err := h.engine.Init(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, "blueprint not found") {
		return
	}

	if start {
		inst, err = h.engine.Start(r.Context(), inst.ID)
		if HandleError(w, r, err, "instance not found") {
			return
		}
	}

	h.respondInstance(w, r, inst.ID, http.StatusCreated)
}

// GetInstance возвращает instance со сводкой по узлам.
// GET /api/v1/instances/{id}
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	h.respondInstance(w, r, r.PathValue("id"), http.StatusOK)
}

// StartInstance запускает instance.
// POST /api/v1/instances/{id}/start
func (h *Handler) StartInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.engine.Start(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, "instance not found") {
		return
	}

	h.respondInstance(w, r, inst.ID, http.StatusOK)
}

// CancelInstance запрашивает остановку instance.
// POST /api/v1/instances/{id}/cancel
func (h *Handler) CancelInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.engine.Cancel(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, "instance not found") {
		return
	}

	h.respondInstance(w, r, inst.ID, http.StatusOK)
}

// ListInstanceNodes возвращает узлы instance в порядке графа.
// GET /api/v1/instances/{id}/nodes
func (h *Handler) ListInstanceNodes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.store.GetInstance(r.Context(), id); HandleError(w, r, err, "instance not found") {
		return
	}

	nodes, err := h.store.ListNodes(r.Context(), id)
	if HandleError(w, r, err, "") {
		return
	}

	List(w, nodes, len(nodes))
}

// respondInstance отправляет актуальный снимок instance.
func (h *Handler) respondInstance(w http.ResponseWriter, r *http.Request, id string, status int) {
	state, err := h.engine.State(r.Context(), id)
	if HandleError(w, r, err, "instance not found") {
		return
	}

	JSON(w, status, DataResponse{Data: InstanceFromState(state)})
}
