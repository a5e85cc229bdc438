// Package cli реализует инструмент командной строки ActionFlow.
//
// # Обзор
//
// CLI — клиентская утилита для ActionFlow API. Работает через HTTP.
// Из внутренних пакетов импортирует только domain и engine: файлы
// определений и blueprints разбираются и проверяются локально до отправки.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для операторских маршрутов /api/v1. Разбирает конверты
// {"data": ...} и {"error": {...}}.
//
//	client := cli.NewClient("http://localhost:8080")
//	bps, err := client.ListBlueprints()
//
// ## Output
//
// Таблица (text/tabwriter), JSON или YAML по флагу -o; --json равен -o json.
// Данные идут в stdout, сообщения Success/Warn в stderr:
//
//	actionflow blueprint list -o json | jq .
//
// ## Commands
//
//   - definition: list, create, show
//   - blueprint: list, create, show
//   - instance: list, create, show, start, cancel, nodes
//
// Каждая группа создаётся фабрикой (NewBlueprintCmd и т.д.), принимающей
// clientFn и outputFn — замыкания для ленивого создания Client и Output
// после парсинга PersistentFlags.
package cli
