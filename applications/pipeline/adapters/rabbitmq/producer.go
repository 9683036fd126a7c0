package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	connectRetries = 10
	connectDelay   = 5 * time.Second
)

// Producer publishes work items to a durable queue.
type Producer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	logger    log.Logger
}

func NewProducer(url, queueName string, logger log.Logger) (*Producer, error) {
	conn, err := connectWithRetry(url, connectRetries, connectDelay, logger)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("can't open channel: %w", err)
	}

	if _, err = channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return nil, fmt.Errorf("can't declare queue: %w", err)
	}

	level.Info(logger).Log("msg", "producer connected", "queue", queueName)

	return &Producer{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
		logger:    logger,
	}, nil
}

func (p *Producer) Publish(ctx context.Context, body []byte) error {
	err := p.channel.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.New().String(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("can't publish message: %w", err)
	}

	return nil
}

func (p *Producer) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}

	return nil
}

func connectWithRetry(url string, maxRetries int, delay time.Duration, logger log.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}

		level.Warn(logger).Log("msg", "broker connect failed",
			"attempt", i+1,
			"max_attempts", maxRetries,
			"err", err,
		)
		if i < maxRetries-1 {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("can't connect after %d attempts: %w", maxRetries, err)
}
