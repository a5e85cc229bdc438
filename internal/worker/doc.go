// Package worker содержит встроенные действия эталонного worker'а
// (cmd/actionflow-worker).
//
// Launcher запускает процесс worker'а для узла instance. Worker
// подключается к движку через internal/sdk, получает конфигурацию узла
// и выполняет действие, выбранное ключом конфигурации "action":
//
//   - http      — HTTP-запрос (HTTPExecutor)
//   - delay     — ожидание с отчётом о прогрессе (DelayExecutor)
//   - transform — передача входов в outputs (TransformExecutor)
//
// Пример определения узла:
//
//	id: fetch
//	handles:
//	  - {id: in, type: target}
//	  - {id: body, type: source}
//	default_configs:
//	  - {key: action, value: http}
//	  - {key: method, value: GET}
//	command: actionflow-worker
//
// Пока действие работает, sdk.Run шлёт heartbeat; ответ stop отменяет
// context действия. Ошибка действия превращается в RESULT со статусом
// failed, outputs при этом сохраняются.
package worker
