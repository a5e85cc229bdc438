package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/actionflow/internal/domain"
	"github.com/shaiso/actionflow/internal/engine"
	"github.com/shaiso/actionflow/internal/repo"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// ListBlueprints возвращает blueprints с количеством шагов и ветвей.
// GET /api/v1/blueprints
func (h *Handler) ListBlueprints(w http.ResponseWriter, r *http.Request) {
	bps, err := h.store.ListBlueprints(r.Context())
	if HandleError(w, r, err, "") {
		return
	}

	result := make([]BlueprintSummaryResponse, 0, len(bps))
	for _, bp := range bps {
		summary, err := engine.Summarize(&bp.Graph)
		if err != nil {
			// Сохранённые blueprints валидны; сюда попадаем только при ручной правке БД
			telemetry.FromContext(r.Context()).Warn("blueprint summary failed", "blueprint_id", bp.ID, "error", err)
		}
		result = append(result, BlueprintSummaryFromDomain(bp, summary))
	}

	List(w, result, len(result))
}

// CreateBlueprint валидирует и сохраняет blueprint.
// POST /api/v1/blueprints (JSON или YAML)
func (h *Handler) CreateBlueprint(w http.ResponseWriter, r *http.Request) {
	body, format, err := readDocument(w, r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	bp, err := engine.ParseBlueprint(body, format)
	if err != nil {
		badDocument(w, err)
		return
	}
	if bp.ID == "" {
		bp.ID = uuid.NewString()
	}

	defs, err := h.loadDefinitions(r.Context(), &bp.Graph)
	if HandleError(w, r, err, "") {
		return
	}
	if err := engine.ValidateGraph(&bp.Graph, defs); err != nil {
		badDocument(w, err)
		return
	}

	summary, err := engine.Summarize(&bp.Graph)
	if err != nil {
		badDocument(w, err)
		return
	}

	bp.CreatedAt = time.Now().UTC()
	if err := h.store.CreateBlueprint(r.Context(), bp); err != nil {
		HandleError(w, r, err, "")
		return
	}

	telemetry.FromContext(r.Context()).Info("blueprint created",
		"blueprint_id", bp.ID,
		"steps", summary.Steps,
		"branches", summary.Branches,
	)
	Created(w, BlueprintResponse{Blueprint: *bp, Summary: summary})
}

// GetBlueprint возвращает blueprint по ID.
// GET /api/v1/blueprints/{id}
func (h *Handler) GetBlueprint(w http.ResponseWriter, r *http.Request) {
	bp, err := h.store.GetBlueprint(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, "blueprint not found") {
		return
	}

	summary, err := engine.Summarize(&bp.Graph)
	if err != nil {
		telemetry.FromContext(r.Context()).Warn("blueprint summary failed", "blueprint_id", bp.ID, "error", err)
	}

	Success(w, BlueprintResponse{Blueprint: *bp, Summary: summary})
}

// loadDefinitions загружает определения, на которые ссылается граф.
// Отсутствующие пропускаются: их отклонит ValidateGraph.
func (h *Handler) loadDefinitions(ctx context.Context, graph *domain.Graph) (map[string]*domain.WorkNodeDefinition, error) {
	defs := make(map[string]*domain.WorkNodeDefinition)
	for _, id := range graph.DefinitionIDs() {
		def, err := h.store.GetDefinition(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		defs[id] = def
	}
	return defs, nil
}
