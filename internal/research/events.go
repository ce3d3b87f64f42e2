package research

// EventType discriminates progress events.
type EventType string

const (
	EventPlanReady    EventType = "plan"
	EventSourcesFound EventType = "sources"
	EventTokenUsage   EventType = "token_usage"
)

// Event is one progress notification from the controller. Only the field
// matching Type is populated.
type Event struct {
	Type       EventType        `json:"type"`
	Plan       *PlanEvent       `json:"plan,omitempty"`
	Sources    *SourcesEvent    `json:"sources,omitempty"`
	TokenUsage *TokenUsageEvent `json:"token_usage,omitempty"`
}

// PlanEvent announces a generated research plan.
type PlanEvent struct {
	Step        int    `json:"step"`
	QueryCount  int    `json:"query_count"`
	PlanSummary string `json:"plan_summary"`
}

// SourcesEvent announces the deduplicated sources of one iteration.
type SourcesEvent struct {
	Label   string      `json:"label"`
	Count   int         `json:"count"`
	Sources []SourceRef `json:"sources"`
}

// TokenUsageEvent reports the running token total.
type TokenUsageEvent struct {
	TotalTokens int64 `json:"total_tokens"`
}

// Sink receives progress events. Implementations must not block for long;
// the controller publishes from its hot path.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// ChannelSink buffers events on a bounded channel for a consumer to drain
// (an SSE handler, a CLI renderer). When the buffer is full the event is
// dropped: progress is advisory and must never stall the research loop.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

func (s *ChannelSink) Publish(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// Events returns the channel the consumer drains.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Close signals the consumer that no more events will arrive.
func (s *ChannelSink) Close() { close(s.ch) }

// publish is a nil-safe helper: a missing sink changes nothing.
func publish(sink Sink, e Event) {
	if sink != nil {
		sink.Publish(e)
	}
}
