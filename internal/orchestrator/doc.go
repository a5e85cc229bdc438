// Package orchestrator управляет выполнением action instances.
//
// Orchestrator отвечает за:
//   - Создание instance и его узлов по blueprint'у
//   - Запуск стартовых узлов и продвижение потомков по мере завершения
//   - Протокол управления worker'ами (INIT, HEARTBEAT, RESULT)
//   - Каскадный пропуск потомков упавшего узла
//   - Отмену instance и отслеживание зависших узлов
//   - Финализацию instance (COMPLETED/FAILED)
//
// Состояние хранится только в Store. Узел меняется через compare-and-set
// по версии, поэтому несколько процессов могут обслуживать один instance.
package orchestrator
