// Package dispatch отправляет задания на запуск worker'ов внешнему launcher'у.
//
// Dispatcher работает по принципу fire-and-forget: успешный Submit
// означает только то, что launcher принял задание. Связь задания с узлом
// instance держится на токене корреляции (Job.NodeID).
//
// Реализации Launcher:
//   - MQLauncher   — публикует задание в RabbitMQ (jobs.submit)
//   - LogLauncher  — только логирует (локальная разработка)
//   - LauncherFunc — адаптер функции (тесты)
package dispatch
