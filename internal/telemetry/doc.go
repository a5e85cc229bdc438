// Package telemetry — логирование и метрики процессов ActionFlow.
//
// logging.go настраивает slog из LOG_LEVEL и LOG_FORMAT и переносит логгер
// через context. metrics.go объявляет Prometheus collectors движка,
// dispatcher'а, RabbitMQ и HTTP; их отдаёт promhttp.Handler() на /metrics.
package telemetry
