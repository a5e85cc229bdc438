package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/actionflow/internal/telemetry"
)

// ErrPermanent — повторная обработка сообщения бессмысленна.
// Handler оборачивает её, чтобы сообщение ушло в DLQ без requeue.
var ErrPermanent = errors.New("permanent failure")

// Handler — функция обработки сообщения.
// Возвращает error, если обработка не удалась (сообщение будет nack).
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенное сообщение.
	Message Message

	// Redelivered — брокер уже доставлял это сообщение.
	Redelivered bool
}

// Исходы обработки сообщения (метка result в метриках).
const (
	outcomeAck     = "ack"
	outcomeRequeue = "requeue"
	outcomeDead    = "dead_letter"
)

// Consumer потребляет сообщения из очереди RabbitMQ.
//
// До prefetch сообщений обрабатываются параллельно. Ошибка handler'а
// возвращает сообщение в очередь один раз: повторная ошибка после
// redelivery отправляет его в DLQ, как и ErrPermanent.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — сообщений в работе одновременно (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет сообщения до отмены ctx или Stop.
// Переживает переподключения: после разрыва ждёт Reconnected и подписывается заново.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		// Подписку на переподключение берём до Consume, чтобы не пропустить его
		reconnected := c.conn.Reconnected()

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started", "prefetch", c.prefetch)
			c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Done():
			return ErrClosed
		case <-reconnected:
		}
	}
}

// subscribe настраивает QoS и начинает потребление.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNotConnected
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack: подтверждаем после обработки
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал открыт и ctx жив.
// Возвращается после завершения всех начатых обработок.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	var g errgroup.Group
	g.SetLimit(c.prefetch)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			g.Go(func() error {
				c.handle(ctx, raw)
				return nil
			})
		}
	}
}

// handle обрабатывает одно сообщение и подтверждает его.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		c.settle(raw, outcomeDead)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message", "redelivered", raw.Redelivered)

	err := c.handler(ctx, &Delivery{Message: msg, Redelivered: raw.Redelivered})
	switch {
	case err == nil:
		c.settle(raw, outcomeAck)
	case errors.Is(err, ErrPermanent) || raw.Redelivered:
		logger.Error("handler failed, dead-lettering", "error", err)
		c.settle(raw, outcomeDead)
	default:
		logger.Warn("handler failed, requeueing", "error", err)
		c.settle(raw, outcomeRequeue)
	}
}

// settle отправляет брокеру ack или nack и считает исход.
func (c *Consumer) settle(raw amqp.Delivery, outcome string) {
	var err error
	switch outcome {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		// Канал закрыт: брокер сам вернёт сообщение в очередь
		c.logger.Warn("failed to settle message", "outcome", outcome, "error", err)
		return
	}
	telemetry.MQMessages.WithLabelValues(c.queue, outcome).Inc()
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// После json.Unmarshal в Message payload — map[string]any
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
