package kafka

// Topic definitions for Kafka event streaming
const (
	// Call lifecycle events
	TopicCallStarted   = "calls.started"
	TopicCallCompleted = "calls.completed"
	TopicCallFailed    = "calls.failed"

	// Tool execution events
	TopicToolExecuted = "tools.executed"
)
