package provider

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// rank orders status transitions; they only ever move forward, except that
// any state may fall to error.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusStreaming:
		return 1
	case StatusCompleted:
		return 2
	case StatusError:
		return 3
	default:
		return -1
	}
}

// ProviderResponse is the mutable record a consumer watches while chunks
// stream in. Text is append-only; chunks are applied in arrival order.
type ProviderResponse struct {
	ID         string       `json:"id"`
	ProviderID string       `json:"providerId"`
	Text       string       `json:"text"`
	Status     Status       `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Meta       ResponseMeta `json:"meta,omitempty"`
}

func newProviderResponse(providerID string, now time.Time) *ProviderResponse {
	return &ProviderResponse{
		ID:         ulid.Make().String(),
		ProviderID: providerID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (r *ProviderResponse) applyChunk(ch Chunk, now time.Time) {
	r.Text += ch.Text
	r.advance(StatusStreaming)
	r.UpdatedAt = now
}

func (r *ProviderResponse) advance(to Status) {
	if to.rank() > r.Status.rank() {
		r.Status = to
	}
}

// ResponseSet accumulates per-provider responses for one turn. A record is
// created lazily from the first chunk rather than requiring pre-allocation.
type ResponseSet struct {
	mu  sync.Mutex
	m   map[string]*ProviderResponse
	now func() time.Time
}

func NewResponseSet() *ResponseSet {
	return &ResponseSet{m: map[string]*ProviderResponse{}, now: time.Now}
}

func (s *ResponseSet) get(providerID string) *ProviderResponse {
	r, ok := s.m[providerID]
	if !ok {
		r = newProviderResponse(providerID, s.now())
		s.m[providerID] = r
	}
	return r
}

// ApplyChunk appends streamed text for a provider, creating the record on
// first contact. Chunks are never reordered; callers deliver them in order.
func (s *ResponseSet) ApplyChunk(ch Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(ch.ProviderID).applyChunk(ch, s.now())
}

// Settle folds a terminal envelope into the provider's record.
func (s *ResponseSet) Settle(env Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.get(env.ProviderID)
	if env.OK {
		if env.Text != "" && env.Text != r.Text {
			// Non-streaming adapters return the full text in the envelope.
			r.Text = env.Text
		}
		r.advance(StatusCompleted)
	} else {
		r.Status = StatusError
	}
	r.Meta = env.Meta
	r.UpdatedAt = s.now()
}

// Get returns a copy of the provider's record, if one exists.
func (s *ResponseSet) Get(providerID string) (ProviderResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[providerID]
	if !ok {
		return ProviderResponse{}, false
	}
	return *r, true
}

// All returns copies of every record keyed by provider id.
func (s *ResponseSet) All() map[string]ProviderResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ProviderResponse, len(s.m))
	for id, r := range s.m {
		out[id] = *r
	}
	return out
}
