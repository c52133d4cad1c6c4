package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicTurns carries one event per finished conversation turn
	TopicTurns = "tripmind.turns"
)
