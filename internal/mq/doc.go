// Package mq — транспорт заданий и событий поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением и канал publisher confirms
//   - topology.go   — exchanges, очереди, привязки и DLQ
//   - publisher.go  — публикация с ожиданием подтверждения брокера
//   - consumer.go   — параллельное потребление с requeue и dead-letter
//
// Типы сообщений:
//   - job.submit        — задание на запуск процесса worker'а
//   - instance.finished — instance достиг терминального статуса
//
// Exchanges:
//   - actionflow.jobs   — задания launcher'у
//   - actionflow.events — события instances
//   - actionflow.dlq    — задания, которые не удалось запустить
package mq
