package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/actionflow/internal/engine"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// maxBodyBytes — ограничение размера тела запроса с документом.
const maxBodyBytes = 4 << 20

// readDocument читает тело запроса и определяет формат по Content-Type.
func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, engine.Format, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	format := engine.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = engine.FormatYAML
	}
	return body, format, nil
}

// badDocument отвечает 400 на документ, который не разобран или не прошёл валидацию.
func badDocument(w http.ResponseWriter, err error) {
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		Error(w, http.StatusBadRequest, ErrCodeValidation, ve.Error())
		return
	}
	BadRequest(w, err.Error())
}

// ListDefinitions возвращает все определения узлов.
// GET /api/v1/definitions
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.ListDefinitions(r.Context())
	if HandleError(w, r, err, "") {
		return
	}

	List(w, defs, len(defs))
}

// CreateDefinition регистрирует определение узла.
// POST /api/v1/definitions (JSON или YAML)
func (h *Handler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	body, format, err := readDocument(w, r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	def, err := engine.ParseDefinition(body, format)
	if err != nil {
		badDocument(w, err)
		return
	}
	def.CreatedAt = time.Now().UTC()

	if err := h.store.CreateDefinition(r.Context(), def); err != nil {
		HandleError(w, r, err, "")
		return
	}

	telemetry.FromContext(r.Context()).Info("definition created", "definition_id", def.ID, "version", def.Version)
	Created(w, def)
}

// GetDefinition возвращает определение по ID.
// GET /api/v1/definitions/{id}
func (h *Handler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.store.GetDefinition(r.Context(), r.PathValue("id"))
	if HandleError(w, r, err, "definition not found") {
		return
	}

	Success(w, def)
}
