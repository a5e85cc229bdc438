// Package sdk — клиент протокола управления для worker'ов ActionFlow.
//
// Launcher запускает процесс worker'а с переменными окружения
// ACTIONFLOW_NODE_ID и ACTIONFLOW_CALLBACK_URL. Worker создаёт клиент
// через FromEnv и передаёт свою работу в Run:
//
//	client, err := sdk.FromEnv()
//	...
//	err = sdk.Run(ctx, client, 5*time.Second, func(ctx context.Context, node *sdk.Node) (map[string]any, error) {
//		node.Report(50, "half way")
//		return map[string]any{"out": "done"}, nil
//	})
//
// Run получает конфигурацию (INIT), периодически шлёт HEARTBEAT и
// отменяет контекст работы, если движок ответил stop. Результат (RESULT)
// отправляется ровно один раз.
package sdk
