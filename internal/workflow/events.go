package workflow

// EventKind tags orchestrator progress events.
type EventKind string

const (
	EventChunk     EventKind = "chunk"
	EventSettled   EventKind = "settled"
	EventTurnSaved EventKind = "turn_saved"
)

type Event struct {
	Kind       EventKind
	ProviderID string
	TurnID     string
	Text       string
	OK         bool
}

// Events is a best-effort progress feed. Delivery never blocks the
// orchestrator: when the buffer is full the event is dropped, because a slow
// listener must not stall provider calls.
type Events struct {
	ch chan Event
}

func NewEvents(buffer int) *Events {
	if buffer <= 0 {
		buffer = 64
	}
	return &Events{ch: make(chan Event, buffer)}
}

func (e *Events) C() <-chan Event { return e.ch }

func (e *Events) emit(ev Event) {
	if e == nil {
		return
	}
	select {
	case e.ch <- ev:
	default:
	}
}
