package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/adilzhan-b/ride-dispatch/internal/domain/models"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	wrap "github.com/adilzhan-b/ride-dispatch/pkg/logger/wrapper"
	"github.com/adilzhan-b/ride-dispatch/pkg/metrics"
	"github.com/adilzhan-b/ride-dispatch/pkg/rabbit"
)

// attemptHeader carries the redelivery count across republishes. The broker's
// redelivered flag is a single bit, so the count travels in a header instead.
const attemptHeader = "x-delivery-attempt"

// errMalformedMessage marks bodies that will never unmarshal. Redelivering
// them cannot help, so they go straight to the dead-letter queue.
var errMalformedMessage = errors.New("malformed message body")

// Consumer runs a blocking consume loop on one queue. Deliveries are handled
// one at a time in arrival order; a failed handler gets the message republished
// with a bumped attempt header until maxAttempts, after which the delivery is
// rejected into <queue>.dlq.
type Consumer struct {
	client      *rabbit.RabbitMQ
	service     string
	maxAttempts int

	l logger.Logger
}

func NewConsumer(client *rabbit.RabbitMQ, service string, maxAttempts int, log logger.Logger) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Consumer{
		client:      client,
		service:     service,
		maxAttempts: maxAttempts,
		l:           log,
	}
}

// Run consumes queue until ctx is cancelled. Connection loss restarts the
// subscription through EnsureConnection rather than killing the loop.
func (c *Consumer) Run(ctx context.Context, queue string, handler func(ctx context.Context, body []byte) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.client.EnsureConnection(ctx); err != nil {
			c.l.Error(ctx, "failed to ensure rabbit connection", err, "queue", queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}

		if err := DeclareTopology(c.client.Channel); err != nil {
			c.l.Error(ctx, "failed to declare topology", err, "queue", queue)
			if !sleepCtx(ctx, 2*time.Second) {
				return ctx.Err()
			}
			continue
		}

		deliveries, err := c.client.Channel.Consume(
			queue,
			"",    // consumer tag
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			c.l.Error(ctx, "failed to start consuming", err, "queue", queue)
			if !sleepCtx(ctx, 2*time.Second) {
				return ctx.Err()
			}
			continue
		}

		c.l.Info(wrap.WithAction(ctx, types.ActionRabbitMQConsuming), "consuming queue", "queue", queue)

		if err := c.drain(ctx, queue, deliveries, handler); err != nil {
			return err
		}
		// deliveries channel closed: connection or channel dropped, loop and redial
	}
}

func (c *Consumer) drain(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler func(ctx context.Context, body []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				c.l.Warn(ctx, "delivery channel closed, resubscribing", "queue", queue)
				return nil
			}
			c.handle(ctx, queue, msg, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, queue string, msg amqp.Delivery, handler func(ctx context.Context, body []byte) error) {
	err := handler(ctx, msg.Body)
	metrics.RecordRabbitMQConsume(c.service, queue, err)

	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.l.Error(ctx, "failed to ack message", ackErr, "queue", queue)
		}
		return
	}

	// Terminal outcomes cannot be fixed by redelivery. The handler already
	// resolved the ride one way or the other, so drop the message for good.
	if types.IsTerminal(err) {
		c.l.Warn(ctx, "message resolved terminally, dropping", "queue", queue, "reason", err.Error())
		if ackErr := msg.Ack(false); ackErr != nil {
			c.l.Error(ctx, "failed to ack terminal message", ackErr, "queue", queue)
		}
		return
	}

	if errors.Is(err, errMalformedMessage) {
		c.l.Error(ctx, "malformed message, dead-lettering", err, "queue", queue)
		c.deadLetter(ctx, queue, msg)
		return
	}

	attempt := deliveryAttempt(msg.Headers)
	if attempt >= c.maxAttempts {
		c.l.Error(ctx, "delivery attempts exhausted, dead-lettering", err,
			"queue", queue, "attempts", attempt)
		c.deadLetter(ctx, queue, msg)
		return
	}

	c.l.Warn(ctx, "handler failed, republishing for retry",
		"queue", queue, "attempt", attempt+1, "reason", err.Error())

	if pubErr := c.republish(ctx, queue, msg, attempt+1); pubErr != nil {
		c.l.Error(ctx, "failed to republish, requeueing at broker", pubErr, "queue", queue)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.l.Error(ctx, "failed to nack message", nackErr, "queue", queue)
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		c.l.Error(ctx, "failed to ack republished message", ackErr, "queue", queue)
	}
}

// deadLetter rejects without requeue; the queue's x-dead-letter-exchange
// routes the message to its .dlq companion.
func (c *Consumer) deadLetter(ctx context.Context, queue string, msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		c.l.Error(ctx, "failed to dead-letter message", err, "queue", queue)
		return
	}
	metrics.RabbitMQMessagesDeadLettered.WithLabelValues(c.service, queue).Inc()
}

// republish puts the body back on the tail of the queue with the attempt
// header bumped, so retries do not block the head of the line.
func (c *Consumer) republish(ctx context.Context, queue string, msg amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[attemptHeader] = int32(attempt)

	return c.client.Channel.PublishWithContext(
		ctx,
		"",
		queue,
		false,
		false,
		amqp.Publishing{
			ContentType:   msg.ContentType,
			DeliveryMode:  amqp.Persistent,
			CorrelationId: msg.CorrelationId,
			Headers:       headers,
			Body:          msg.Body,
			Timestamp:     time.Now(),
		},
	)
}

// sleepCtx waits for d, reporting false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func deliveryAttempt(headers amqp.Table) int {
	raw, ok := headers[attemptHeader]
	if !ok {
		return 1
	}
	switch v := raw.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}

// Typed subscriptions. Each decodes the queue's message shape and flags
// undecodable bodies as malformed so they dead-letter immediately.

func (c *Consumer) ConsumeRideRequested(ctx context.Context, handler func(ctx context.Context, msg models.RideRequestedMessage) error) error {
	return c.Run(ctx, QueueRideRequested, func(ctx context.Context, body []byte) error {
		var msg models.RideRequestedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %w", errMalformedMessage, err)
		}
		ctx = wrap.WithRequestID(ctx, msg.CorrelationID)
		return handler(ctx, msg)
	})
}

func (c *Consumer) ConsumeDriverAssigned(ctx context.Context, handler func(ctx context.Context, msg models.DriverAssignedMessage) error) error {
	return c.Run(ctx, QueueDriverAssigned, func(ctx context.Context, body []byte) error {
		var msg models.DriverAssignedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %w", errMalformedMessage, err)
		}
		ctx = wrap.WithRequestID(ctx, msg.CorrelationID)
		return handler(ctx, msg)
	})
}

func (c *Consumer) ConsumeRideCancelled(ctx context.Context, handler func(ctx context.Context, msg models.RideCancelledMessage) error) error {
	return c.Run(ctx, QueueRideCancelled, func(ctx context.Context, body []byte) error {
		var msg models.RideCancelledMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %w", errMalformedMessage, err)
		}
		ctx = wrap.WithRequestID(ctx, msg.CorrelationID)
		return handler(ctx, msg)
	})
}
