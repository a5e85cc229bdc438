package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeJobs   Exchange = "actionflow.jobs"
	ExchangeEvents Exchange = "actionflow.events"
	ExchangeDLQ    Exchange = "actionflow.dlq"
)

const (
	QueueJobsSubmit        Queue = "jobs.submit"
	QueueInstancesFinished Queue = "instances.finished"
	QueueDLQJobs           Queue = "dlq.jobs"
)

const (
	RoutingKeySubmit   RoutingKey = "submit"
	RoutingKeyFinished RoutingKey = "finished"
	RoutingKeyDLQJobs  RoutingKey = "jobs"
)

// finishedEventTTL — сколько событие о завершении instance ждёт подписчика.
const finishedEventTTL = 24 * time.Hour

// QueueSpec — очередь и её привязка к обменнику.
type QueueSpec struct {
	Name       Queue
	Exchange   Exchange
	RoutingKey RoutingKey
	Args       amqp.Table
}

// Topology — обменники (все direct и durable) и очереди ActionFlow.
type Topology struct {
	Exchanges []Exchange
	Queues    []QueueSpec
}

// DefaultTopology описывает маршруты сообщений:
//
//	actionflow.jobs   --submit-->   jobs.submit (launcher; отказ уходит в dlq.jobs)
//	actionflow.events --finished--> instances.finished (события живут сутки)
//	actionflow.dlq    --jobs-->     dlq.jobs
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []Exchange{ExchangeJobs, ExchangeEvents, ExchangeDLQ},
		Queues: []QueueSpec{
			{
				Name:       QueueJobsSubmit,
				Exchange:   ExchangeJobs,
				RoutingKey: RoutingKeySubmit,
				Args: amqp.Table{
					"x-dead-letter-exchange":    string(ExchangeDLQ),
					"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
				},
			},
			{
				Name:       QueueInstancesFinished,
				Exchange:   ExchangeEvents,
				RoutingKey: RoutingKeyFinished,
				Args: amqp.Table{
					"x-message-ttl": finishedEventTTL.Milliseconds(),
				},
			},
			{
				Name:       QueueDLQJobs,
				Exchange:   ExchangeDLQ,
				RoutingKey: RoutingKeyDLQJobs,
			},
		},
	}
}

// SetupTopology объявляет DefaultTopology. Повторный вызов ничего не меняет.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return DefaultTopology().Declare(ctx, conn)
}

// Declare объявляет обменники, затем очереди с привязками.
func (t Topology) Declare(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range t.Exchanges {
			if err := ch.ExchangeDeclare(string(ex), amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, q := range t.Queues {
			if _, err := ch.QueueDeclare(string(q.Name), true, false, false, false, q.Args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.Name, err)
			}
			if err := ch.QueueBind(string(q.Name), string(q.RoutingKey), string(q.Exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.Name, q.Exchange, err)
			}
		}
		return nil
	})
}

// Validate проверяет, что каждая очередь привязана к объявленному
// обменнику, а dead-letter обменник тоже объявлен.
func (t Topology) Validate() error {
	declared := make(map[Exchange]bool, len(t.Exchanges))
	for _, ex := range t.Exchanges {
		declared[ex] = true
	}

	for _, q := range t.Queues {
		if !declared[q.Exchange] {
			return fmt.Errorf("queue %s: exchange %s is not declared", q.Name, q.Exchange)
		}
		if dlx, ok := q.Args["x-dead-letter-exchange"].(string); ok && !declared[Exchange(dlx)] {
			return fmt.Errorf("queue %s: dead-letter exchange %s is not declared", q.Name, dlx)
		}
	}
	return nil
}
