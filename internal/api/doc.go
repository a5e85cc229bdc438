// Package api содержит HTTP API ActionFlow.
//
// Структура:
//   - handler.go            — Handler с зависимостями (store, engine, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — RequestID, Recovery, Observe (логи и метрики)
//   - response.go           — JSON-ответы и отображение ошибок в HTTP коды
//   - dto.go                — запросы и ответы
//   - definition_handler.go — /api/v1/definitions
//   - blueprint_handler.go  — /api/v1/blueprints
//   - instance_handler.go   — /api/v1/instances
//   - sdk_handler.go        — протокол управления worker'ами (/action/sdk)
//
// Операторские маршруты отвечают в обёртке {"data": ...}. Маршруты
// /action/sdk отдают тело протокола как есть: worker'ы читают
// {"action": ...} и {"status": ...} без обёртки.
package api
