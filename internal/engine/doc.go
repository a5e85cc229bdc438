// Package engine содержит анализ и валидацию графов blueprint'ов.
//
// Включает:
//   - analyzer.go — стартовые узлы и подсчёт путей (branches)
//   - dag.go      — построение и обход DAG (directed acyclic graph)
//   - parser.go   — разбор JSON/YAML и валидация определений и графов
//   - template.go — рендеринг аргументов процессов ({{ .NodeID }})
//
// Engine не хранит состояние запусков: этим занимается orchestrator.
package engine
