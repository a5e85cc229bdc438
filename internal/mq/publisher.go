package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/actionflow/internal/telemetry"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobSubmit        MessageType = "job.submit"
	MessageTypeInstanceFinished MessageType = "instance.finished"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger.With("component", "mq_publisher"),
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobSubmitPayload — задание на запуск процесса worker'а.
type JobSubmitPayload struct {
	ExecutableID string   `json:"executable_id"`
	Command      string   `json:"command"`
	Args         []string `json:"args,omitempty"`
	NodeID       string   `json:"node_id"`
	CallbackURL  string   `json:"callback_url"`
}

// InstanceFinishedPayload — уведомление о завершении instance.
type InstanceFinishedPayload struct {
	InstanceID  string  `json:"instance_id"`
	BlueprintID string  `json:"blueprint_id"`
	Status      string  `json:"status"` // COMPLETED или FAILED
	Progress    float64 `json:"progress"`
	Error       string  `json:"error,omitempty"`
}

// Publish публикует сообщение и ждёт подтверждения брокера.
// Ошибка означает, что сообщение могло не попасть в очередь.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.conn.publishConfirmed(ctx, string(exchange), string(routingKey), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		telemetry.MQMessages.WithLabelValues(string(exchange), "publish_error").Inc()
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}
	telemetry.MQMessages.WithLabelValues(string(exchange), "published").Inc()

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// newMessage оборачивает payload в Message с новым ID.
func newMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// PublishJobSubmit публикует задание на запуск worker'а.
// Потребитель: Launcher.
func (p *Publisher) PublishJobSubmit(ctx context.Context, payload JobSubmitPayload) error {
	return p.Publish(ctx, ExchangeJobs, RoutingKeySubmit, newMessage(MessageTypeJobSubmit, payload))
}

// PublishInstanceFinished публикует событие о завершении instance.
// Потребитель: внешние подписчики.
func (p *Publisher) PublishInstanceFinished(ctx context.Context, payload InstanceFinishedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyFinished, newMessage(MessageTypeInstanceFinished, payload))
}
