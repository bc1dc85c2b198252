// Package observer defines the layer-event bus (C9) the orchestrator
// emits to during remember and rememberStream. It is intentionally plain
// Go — no OpenTelemetry types leak into this interface — so callers can
// wire it to logs, metrics, a UI progress bar, or nothing at all.
package observer

// LayerStatus is the lifecycle state of one orchestration layer.
type LayerStatus string

const (
	StatusPending  LayerStatus = "pending"
	StatusComplete LayerStatus = "complete"
	StatusError    LayerStatus = "error"
	StatusSkipped  LayerStatus = "skipped"
)

// LayerUpdate is one event in an orchestration's totally-ordered event
// stream. Every pending is matched by exactly one terminal event
// (complete, error, or skipped).
type LayerUpdate struct {
	OrchestrationID string
	Layer           string // "conversation" | "vector" | "facts" | "graph" | "stream"
	Status          LayerStatus
	Message         string
	DetailIDs       []string // ids created/affected by this layer, when known
}

// CompletionSummary is the terminal event for one orchestration.
type CompletionSummary struct {
	OrchestrationID string
	TotalLatencyMs  int64
	CreatedIDs      map[string]string // e.g. "userMessageId", "agentMessageId"
}

// OrchestrationObserver receives layer events for remember and
// rememberStream calls. A nil observer is always safe to pass: the
// orchestrator wraps it in Safe, which skips a nil observer, and
// NoopObserver discards every event. The orchestrator never awaits a
// callback serially across layers — they run inline per event, and a
// panic in a callback is recovered by Safe, never raised.
type OrchestrationObserver interface {
	OnOrchestrationStart(orchestrationID string)
	OnLayerUpdate(update LayerUpdate)
	OnOrchestrationComplete(summary CompletionSummary)
}

// NoopObserver discards every event. Used as the default when a caller
// does not supply an observer.
type NoopObserver struct{}

func (NoopObserver) OnOrchestrationStart(orchestrationID string)    {}
func (NoopObserver) OnLayerUpdate(update LayerUpdate)               {}
func (NoopObserver) OnOrchestrationComplete(summary CompletionSummary) {}

// Safe wraps an observer (which may be nil) so callers can always invoke
// its methods without a nil check. It recovers panics from caller-supplied
// callbacks; a recovered panic is passed to OnPanic when that is set and
// is otherwise discarded.
type Safe struct {
	Observer OrchestrationObserver
	OnPanic  func(layer string, recovered any)
}

func (s Safe) guard(layer string) {
	if r := recover(); r != nil && s.OnPanic != nil {
		s.OnPanic(layer, r)
	}
}

func (s Safe) Start(orchestrationID string) {
	if s.Observer == nil {
		return
	}
	defer s.guard("start")
	s.Observer.OnOrchestrationStart(orchestrationID)
}

func (s Safe) Layer(update LayerUpdate) {
	if s.Observer == nil {
		return
	}
	defer s.guard(update.Layer)
	s.Observer.OnLayerUpdate(update)
}

func (s Safe) Complete(summary CompletionSummary) {
	if s.Observer == nil {
		return
	}
	defer s.guard("complete")
	s.Observer.OnOrchestrationComplete(summary)
}
