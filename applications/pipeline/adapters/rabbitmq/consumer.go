package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mediastor/imgmeta/applications/pipeline"
	"github.com/mediastor/imgmeta/applications/pipeline/metrics"
)

// Consumer pulls deliveries off the queue, assembles them into batches and
// hands the raw envelopes to the metadata service.
//
// Every classified delivery is acked: outcomes are terminal for this
// attempt, and redelivery policy belongs to the broker, not the consumer.
type Consumer struct {
	conn          *amqp.Connection
	channel       *amqp.Channel
	queueName     string
	batchSize     int
	flushInterval time.Duration
	svc           pipeline.MetadataService
	metrics       *metrics.Batch
	logger        log.Logger
}

func NewConsumer(
	url, queueName string,
	batchSize int,
	flushInterval time.Duration,
	svc pipeline.MetadataService,
	m *metrics.Batch,
	logger log.Logger,
) (*Consumer, error) {
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

	if err = channel.Qos(batchSize, 0, false); err != nil {
		return nil, fmt.Errorf("can't set qos: %w", err)
	}

	level.Info(logger).Log("msg", "consumer connected", "queue", queueName)

	return &Consumer{
		conn:          conn,
		channel:       channel,
		queueName:     queueName,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		svc:           svc,
		metrics:       m,
		logger:        logger,
	}, nil
}

// Run consumes until the context is canceled or the broker closes the
// delivery stream. Batches flush when full or on the flush interval.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("can't register consumer: %w", err)
	}

	batch := make([]amqp.Delivery, 0, c.batchSize)

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background(), batch)
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				c.flush(ctx, batch)
				return errors.New("delivery stream closed")
			}

			batch = append(batch, msg)
			if len(batch) >= c.batchSize {
				c.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			c.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

func (c *Consumer) flush(ctx context.Context, batch []amqp.Delivery) {
	if len(batch) == 0 {
		return
	}

	runID := uuid.New().String()

	envelopes := make([][]byte, 0, len(batch))
	for _, msg := range batch {
		envelopes = append(envelopes, msg.Body)
	}

	summary := c.svc.RunBatch(ctx, envelopes)
	c.metrics.Observe(summary)

	for _, msg := range batch {
		if err := msg.Ack(false); err != nil {
			level.Error(c.logger).Log("msg", "can't ack delivery", "run_id", runID, "err", err)
		}
	}

	level.Info(c.logger).Log("msg", "batch complete",
		"run_id", runID,
		"items", len(batch),
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
	)
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
