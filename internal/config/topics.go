package config

// NSQ topics. The jobs table is the source of truth for pipeline state;
// these carry wake nudges and stage events only.
const (
	// TopicPipelineWake nudges the scheduler to poll immediately instead of
	// waiting for the next tick. Payload is ignored.
	TopicPipelineWake = "pipeline_wake"

	// TopicPipelineEvents carries stage lifecycle events (enqueued, completed,
	// failed) for external observers.
	TopicPipelineEvents = "pipeline_events"

	// ChannelScheduler is the consumer channel for wake nudges.
	ChannelScheduler = "scheduler"
)
