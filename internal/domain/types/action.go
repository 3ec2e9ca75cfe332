package types

const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"
	ActionRabbitReconnected       = "rabbitmq_reconnection_success"
	ActionRabbitMQConsuming       = "rabbitmq_consuming"

	ActionRedisConnected    = "redis_connected"
	ActionPostgresConnected = "postgres_connected"

	ActionRideRequested     = "ride_requested"
	ActionRideAssigned      = "ride_assigned"
	ActionRideCancelled     = "ride_cancelled"
	ActionAssignmentCleared = "assignment_cache_cleared"
)
