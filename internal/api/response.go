package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/actionflow/internal/engine"
	"github.com/shaiso/actionflow/internal/orchestrator"
	"github.com/shaiso/actionflow/internal/repo"
	"github.com/shaiso/actionflow/internal/telemetry"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeProtocol      ErrorCode = "PROTOCOL_ERROR"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// maxProtocolBody — ограничение тела HEARTBEAT и RESULT.
const maxProtocolBody = 1 << 20

// decodeJSON разбирает тело запроса в v. При ошибке отвечает 400
// и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProtocolBody)).Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// InternalError логирует err и отправляет ошибку 500 без подробностей.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	telemetry.FromContext(r.Context()).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError преобразует ошибку store или оркестратора в HTTP ответ.
// Возвращает false, если err == nil и ответ ещё не отправлен.
func HandleError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	var (
		nf *orchestrator.NotFoundError
		ve *engine.ValidationError
		pe *orchestrator.ProtocolError
	)

	switch {
	case errors.As(err, &nf):
		NotFound(w, nf.Error())
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.As(err, &ve):
		Error(w, http.StatusBadRequest, ErrCodeValidation, ve.Error())
	case errors.As(err, &pe):
		Error(w, http.StatusConflict, ErrCodeProtocol, pe.Error())
	case errors.Is(err, repo.ErrAlreadyExists), errors.Is(err, repo.ErrConflict):
		Conflict(w, err.Error())
	case errors.Is(err, repo.ErrInvalidState):
		InvalidState(w, err.Error())
	default:
		InternalError(w, r, err)
	}
	return true
}
