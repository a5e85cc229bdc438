package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/actionflow/internal/telemetry"
)

// HeaderRequestID — заголовок с идентификатором запроса.
const HeaderRequestID = "X-Request-ID"

// Middleware — обёртка над http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain собирает middleware так, что первый в списке выполняется первым.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// RequestID берёт X-Request-ID клиента или генерирует новый,
// возвращает его в ответе и кладёт в контекст логгер с request_id.
func RequestID(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := telemetry.WithLogger(r.Context(), logger.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recovery превращает панику обработчика в ответ 500.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger := telemetry.FromContext(r.Context())
					logger.Error("panic recovered",
						"panic", rec,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Observe логирует запрос и пишет метрики по шаблону маршрута.
//
// Шаблон (r.Pattern) заполняет ServeMux, поэтому цепочка оборачивает
// обработчик, уже зарегистрированный в mux. Heartbeat'ы worker'ов
// приходят часто и логируются на уровне debug, ответы 5xx на warn.
func Observe() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			telemetry.HTTPRequests.WithLabelValues(route, strconv.Itoa(rw.status)).Inc()
			telemetry.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

			level := slog.LevelInfo
			switch {
			case rw.status >= http.StatusInternalServerError:
				level = slog.LevelWarn
			case strings.HasSuffix(route, "/heartbeat"):
				level = slog.LevelDebug
			}
			telemetry.FromContext(r.Context()).Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", rw.status,
				"duration", elapsed,
			)
		})
	}
}

// statusRecorder запоминает первый записанный код ответа.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(status int) {
	if !rw.wroteHeader {
		rw.status = status
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
