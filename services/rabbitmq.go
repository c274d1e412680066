package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"udaay-be/models"
)

const (
	ValidationRoutingKey = "issue.submitted"
	ValidationQueueName  = "q.issues.validation"
	DeadLetterQueueName  = "q.issues.validation.dead"

	// consumerPrefetch bounds both unacked deliveries and jobs validated at once.
	consumerPrefetch = 4
)

// RabbitMQQueue publishes validation jobs to a durable queue and consumes them with
// manual acks. Jobs whose cascade is exhausted are dead-lettered.
type RabbitMQQueue struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	mu           sync.Mutex
}

func NewRabbitMQQueue(url, exchangeName string) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to RabbitMQ")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, goerr.Wrap(err, "failed to open channel")
	}

	q := &RabbitMQQueue{conn: conn, channel: channel, exchangeName: exchangeName}
	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}

	log.Info().
		Str("exchange", exchangeName).
		Str("queue", ValidationQueueName).
		Msg("RabbitMQ validation queue initialized")
	return q, nil
}

func (q *RabbitMQQueue) declare() error {
	err := q.channel.ExchangeDeclare(
		q.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return goerr.Wrap(err, "failed to declare exchange", goerr.V("exchange", q.exchangeName))
	}

	if _, err := q.channel.QueueDeclare(DeadLetterQueueName, true, false, false, false, nil); err != nil {
		return goerr.Wrap(err, "failed to declare dead letter queue")
	}

	_, err = q.channel.QueueDeclare(
		ValidationQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": DeadLetterQueueName,
		},
	)
	if err != nil {
		return goerr.Wrap(err, "failed to declare queue", goerr.V("queue", ValidationQueueName))
	}

	if err := q.channel.QueueBind(ValidationQueueName, ValidationRoutingKey, q.exchangeName, false, nil); err != nil {
		return goerr.Wrap(err, "failed to bind queue", goerr.V("routing_key", ValidationRoutingKey))
	}
	return nil
}

func (q *RabbitMQQueue) Enqueue(ctx context.Context, job ValidationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal job", goerr.V("issue_id", job.IssueID))
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q.mu.Lock()
	defer q.mu.Unlock()

	err = q.channel.PublishWithContext(
		ctx,
		q.exchangeName,       // exchange
		ValidationRoutingKey, // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    uuid.NewString(),
		},
	)
	if err != nil {
		return goerr.Wrap(err, "failed to publish job", goerr.V("issue_id", job.IssueID))
	}

	log.Info().
		Str("issue_id", job.IssueID).
		Int("body_size", len(body)).
		Msg("Validation job published")
	return nil
}

// Consume starts delivering jobs to handler until ctx is done or the channel closes.
func (q *RabbitMQQueue) Consume(ctx context.Context, handler JobHandler) error {
	if err := q.channel.Qos(consumerPrefetch, 0, false); err != nil {
		return goerr.Wrap(err, "failed to set qos")
	}

	msgs, err := q.channel.Consume(
		ValidationQueueName, // queue
		"",                  // consumer tag
		false,               // auto-ack
		false,               // exclusive
		false,               // no-local
		false,               // no-wait
		nil,                 // args
	)
	if err != nil {
		return goerr.Wrap(err, "failed to start consuming")
	}

	go q.consumeLoop(ctx, msgs, handler)

	log.Info().Str("queue", ValidationQueueName).Msg("Validation consumer started")
	return nil
}

// consumeLoop hands each delivery to its own goroutine, at most consumerPrefetch at a
// time. It returns once the channel is closed or ctx is done and in-flight jobs settled.
func (q *RabbitMQQueue) consumeLoop(ctx context.Context, msgs <-chan amqp.Delivery, handler JobHandler) {
	sem := make(chan struct{}, consumerPrefetch)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				log.Warn().Msg("Validation delivery channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			}

			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Str("message_id", d.MessageId).Msg("Validation job panicked")
						_ = d.Nack(false, false)
					}
				}()
				q.handle(ctx, d, handler)
			}(d)
		}
	}
}

func (q *RabbitMQQueue) handle(ctx context.Context, d amqp.Delivery, handler JobHandler) {
	var job ValidationJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Error().Err(err).Str("message_id", d.MessageId).Msg("Failed to unmarshal validation job")
		_ = d.Nack(false, false)
		return
	}

	err := handler(ctx, job)
	switch settle(err, d.Redelivered) {
	case settleAck:
		_ = d.Ack(false)
	case settleRequeue:
		log.Warn().Err(err).Str("issue_id", job.IssueID).Msg("Validation job failed, requeueing")
		_ = d.Nack(false, true)
	case settleDeadLetter:
		log.Error().Err(err).Str("issue_id", job.IssueID).Msg("Validation job dead-lettered")
		_ = d.Nack(false, false)
	}
}

type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDeadLetter
)

// settle picks what to do with a delivery after the handler ran. Transient failures
// get one redelivery.
func settle(err error, redelivered bool) settlement {
	switch {
	case err == nil:
		return settleAck
	case errors.Is(err, models.ErrAllProvidersFailed):
		return settleDeadLetter
	case redelivered:
		return settleDeadLetter
	}
	return settleRequeue
}

func (q *RabbitMQQueue) Close() error {
	if q.channel != nil {
		if err := q.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}
	if q.conn != nil {
		if err := q.conn.Close(); err != nil {
			return goerr.Wrap(err, "failed to close RabbitMQ connection")
		}
	}
	log.Info().Msg("RabbitMQ validation queue closed")
	return nil
}

func (q *RabbitMQQueue) HealthCheck() error {
	if q.conn == nil || q.conn.IsClosed() {
		return goerr.New("RabbitMQ connection is closed")
	}
	return nil
}
