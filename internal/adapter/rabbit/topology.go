package rabbit

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names shared by both services. Messages are published to the default
// exchange with the queue name as routing key.
const (
	QueueRideRequested  = "ride_requests"
	QueueDriverAssigned = "driver_assignments"
	QueueRideCancelled  = "ride_cancelled"

	deadLetterSuffix = ".dlq"
)

var workQueues = []string{QueueRideRequested, QueueDriverAssigned, QueueRideCancelled}

// DeadLetterQueue returns the dead-letter companion of a work queue.
func DeadLetterQueue(queue string) string {
	return queue + deadLetterSuffix
}

// DeclareTopology declares every work queue and its dead-letter companion.
// Work queues dead-letter rejected messages into <queue>.dlq through the
// default exchange, which is where poison messages land after the bounded
// redelivery attempts run out.
func DeclareTopology(ch *amqp.Channel) error {
	for _, q := range workQueues {
		if _, err := ch.QueueDeclare(
			DeadLetterQueue(q),
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return err
		}

		if _, err := ch.QueueDeclare(
			q,
			true,
			false,
			false,
			false,
			amqp.Table{
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": DeadLetterQueue(q),
			},
		); err != nil {
			return err
		}
	}
	return nil
}
