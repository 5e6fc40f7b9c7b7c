package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/danshapiro/chorus/internal/logx"
)

// Capabilities is the static descriptor an adapter reports. NeedsDNR and
// NeedsOffscreen are environment placement hints carried through for host
// integrations; core logic never branches on them.
type Capabilities struct {
	NeedsDNR               bool
	NeedsOffscreen         bool
	SupportsStreaming      bool
	SupportsContinuation   bool
	Synthesis              bool
	SupportsModelSelection bool
}

// Context is the opaque continuation bundle handed to an adapter. Callers may
// pass either the canonical flat shape or the legacy nested one; the accessors
// check both so dispatch stays consistent with the resolver's normalization.
type Context map[string]any

func (c Context) Cursor() string         { return c.lookup("cursor") }
func (c Context) ConversationID() string { return c.lookup("conversationId") }
func (c Context) Model() string          { return c.lookup("model") }
func (c Context) Token() string          { return c.lookup("token") }

func (c Context) lookup(key string) string {
	if c == nil {
		return ""
	}
	if s, ok := c[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if meta, ok := c["meta"].(map[string]any); ok {
		if s, ok := meta[key].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// PromptRequest starts a new provider-side conversation.
type PromptRequest struct {
	Prompt    string
	SessionID string
	Meta      map[string]any
}

func (r PromptRequest) MetaString(key string) string {
	if r.Meta == nil {
		return ""
	}
	s, _ := r.Meta[key].(string)
	return strings.TrimSpace(s)
}

// Chunk is one incremental slice of provider output.
type Chunk struct {
	ProviderID string
	Text       string
	Partial    bool
}

type ChunkFunc func(Chunk)

// Adapter presents one external provider behind a fixed shape so callers
// never special-case providers. SendPrompt and SendContinuation report
// provider-side failures as ok:false envelopes, not errors; a non-nil error
// from either means the adapter itself broke its contract.
type Adapter interface {
	Name() string
	Capabilities() Capabilities

	// Init is idempotent setup.
	Init(ctx context.Context) error

	// HealthCheck never returns an error; failures collapse to false.
	HealthCheck(ctx context.Context) bool

	SendPrompt(ctx context.Context, req PromptRequest, onChunk ChunkFunc) (Response, error)
	SendContinuation(ctx context.Context, prompt string, pctx Context, sessionID string, onChunk ChunkFunc) (Response, error)
}

// Ask is the single entry point callers use. It dispatches to SendContinuation
// iff a cursor is present in the supplied context (nested or flat), mirroring
// the resolver's new-joiner decision, and otherwise starts fresh. Unlike the
// send operations it propagates adapter contract-violation errors to the
// caller after logging, so orchestrators can apply their own retry policy.
func Ask(ctx context.Context, a Adapter, prompt string, pctx Context, sessionID string, onChunk ChunkFunc) (Response, error) {
	var resp Response
	var err error
	if pctx.Cursor() != "" {
		resp, err = a.SendContinuation(ctx, prompt, pctx, sessionID, onChunk)
	} else {
		resp, err = a.SendPrompt(ctx, PromptRequest{Prompt: prompt, SessionID: sessionID}, onChunk)
	}
	if err != nil {
		logx.Errorf("ask %s: %v", a.Name(), err)
		return Response{}, err
	}
	return resp, nil
}

// ExtractText normalizes heterogeneous provider payloads to plain text.
// Precedence: explicit text field, first candidate's content, raw string
// payload, JSON-stringified fallback.
func ExtractText(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return p
	case map[string]any:
		if t, ok := p["text"].(string); ok && t != "" {
			return t
		}
		if cands, ok := p["candidates"].([]any); ok && len(cands) > 0 {
			if first, ok := cands[0].(map[string]any); ok {
				if c, ok := first["content"].(string); ok && c != "" {
					return c
				}
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}

func sinceMS(start time.Time) int64 { return time.Since(start).Milliseconds() }
