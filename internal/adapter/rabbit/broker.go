package rabbit

import (
	"context"
	"encoding/json"
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

// DispatchBroker publishes the three dispatch message kinds. Publishes are
// retried in place: by the time a publish happens the ledger write (if any)
// has already committed, so the queue write must eventually land rather than
// roll anything back.
type DispatchBroker struct {
	client  *rabbit.RabbitMQ
	service string

	retries int
	backoff time.Duration

	l logger.Logger
}

func NewDispatchBroker(client *rabbit.RabbitMQ, service string, retries int, backoff time.Duration, log logger.Logger) *DispatchBroker {
	if retries <= 0 {
		retries = 5
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &DispatchBroker{
		client:  client,
		service: service,
		retries: retries,
		backoff: backoff,
		l:       log,
	}
}

func (b *DispatchBroker) PublishRideRequested(ctx context.Context, msg models.RideRequestedMessage) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_ride_requested")
	return b.publish(ctx, QueueRideRequested, msg.CorrelationID, msg)
}

func (b *DispatchBroker) PublishDriverAssigned(ctx context.Context, msg models.DriverAssignedMessage) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_driver_assigned")
	return b.publish(ctx, QueueDriverAssigned, msg.CorrelationID, msg)
}

func (b *DispatchBroker) PublishRideCancelled(ctx context.Context, msg models.RideCancelledMessage) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_ride_cancelled")
	return b.publish(ctx, QueueRideCancelled, msg.CorrelationID, msg)
}

func (b *DispatchBroker) publish(ctx context.Context, queue, correlationID string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to marshal message: %w", err))
	}

	err = retry(b.retries, b.backoff, func() error {
		if err := b.client.EnsureConnection(ctx); err != nil {
			return fmt.Errorf("%w: %w", types.ErrDependencyUnavailable, err)
		}

		if err := DeclareTopology(b.client.Channel); err != nil {
			return fmt.Errorf("%w: declare topology: %w", types.ErrDependencyUnavailable, err)
		}

		if err := b.client.Channel.PublishWithContext(
			ctx,
			"",    // default exchange
			queue, // routing key
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp.Persistent,
				CorrelationId: correlationID,
				Body:          body,
				Timestamp:     time.Now(),
			},
		); err != nil {
			return fmt.Errorf("%w: publish to %s: %w", types.ErrDependencyUnavailable, queue, err)
		}

		return nil
	})

	metrics.RecordRabbitMQPublish(b.service, queue, err)
	if err != nil {
		return wrap.Error(ctx, err)
	}

	b.l.Debug(ctx, "message published", "queue", queue)
	return nil
}

func retry(n int, sleep time.Duration, fn func() error) error {
	var err error
	for range n {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(sleep)
	}
	return err
}
