package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danshapiro/chorus/internal/logx"
	"github.com/danshapiro/chorus/internal/store"
)

type RequestType string

const (
	TypeInitialize RequestType = "initialize"
	TypeExtend     RequestType = "extend"
	TypeRecompute  RequestType = "recompute"
)

var (
	ErrInvalidRequest   = errors.New("invalid workflow request")
	ErrMissingSessionID = errors.New("session id is required")
	ErrNoPriorTurn      = errors.New("session has no prior turn")
	ErrTurnNotFound     = errors.New("turn not found")
)

// Request is the workflow request variant driving context resolution.
type Request struct {
	Type      RequestType
	SessionID string
	Providers []string

	// ForcedContextReset entries may be exact provider ids or glob patterns
	// ("openai*"). Matching providers resolve as new joiners regardless of
	// stored state.
	ForcedContextReset []string

	// Recompute only.
	SourceTurnID   string
	StepType       string
	TargetProvider string
}

// ProviderContext is the canonical flat continuation bundle. Persisted data
// carries two legacy shapes (nested {meta:{...}} and flat); both normalize to
// this struct at exactly one point, normalizeStored below.
type ProviderContext struct {
	NewJoiner      bool   `json:"isNewJoiner,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Cursor         string `json:"cursor,omitempty"`
	Model          string `json:"model,omitempty"`
	Token          string `json:"token,omitempty"`
}

// NewJoinerContext marks a provider participating without prior state. It
// never carries a conversation id or cursor.
func NewJoinerContext() ProviderContext { return ProviderContext{NewJoiner: true} }

type ResolvedContext struct {
	Type             RequestType
	SessionID        string
	LastTurnID       string
	ProviderContexts map[string]ProviderContext
}

// Resolver decides which prior conversational state each provider continues
// from. It reads sessions and turns through the narrow store contract and
// never retries: retry policy belongs to the caller.
type Resolver struct {
	Store store.Store
}

func NewResolver(s store.Store) *Resolver { return &Resolver{Store: s} }

func (r *Resolver) Resolve(ctx context.Context, req Request) (ResolvedContext, error) {
	switch req.Type {
	case TypeInitialize:
		return r.resolveInitialize(req), nil
	case TypeExtend:
		return r.resolveExtend(ctx, req)
	case TypeRecompute:
		return r.resolveRecompute(ctx, req)
	case "":
		return ResolvedContext{}, fmt.Errorf("%w: missing type", ErrInvalidRequest)
	default:
		return ResolvedContext{}, fmt.Errorf("%w: unrecognized type %q", ErrInvalidRequest, req.Type)
	}
}

// resolveInitialize hands every provider a pass-through new-joiner context.
// No store access; it cannot fail.
func (r *Resolver) resolveInitialize(req Request) ResolvedContext {
	out := ResolvedContext{
		Type:             TypeInitialize,
		ProviderContexts: map[string]ProviderContext{},
	}
	for _, p := range req.Providers {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out.ProviderContexts[p] = NewJoinerContext()
	}
	return out
}

func (r *Resolver) resolveExtend(ctx context.Context, req Request) (ResolvedContext, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return ResolvedContext{}, ErrMissingSessionID
	}
	sess, err := store.GetSession(ctx, r.Store, req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ResolvedContext{}, fmt.Errorf("%w: session %s", ErrNoPriorTurn, req.SessionID)
		}
		logx.Errorf("resolve extend: session lookup %s: %v", req.SessionID, err)
		return ResolvedContext{}, err
	}
	if sess.LastTurnID == "" {
		return ResolvedContext{}, fmt.Errorf("%w: session %s", ErrNoPriorTurn, req.SessionID)
	}
	turn, err := store.GetTurn(ctx, r.Store, sess.LastTurnID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ResolvedContext{}, fmt.Errorf("%w: %s", ErrTurnNotFound, sess.LastTurnID)
		}
		logx.Errorf("resolve extend: turn lookup %s: %v", sess.LastTurnID, err)
		return ResolvedContext{}, err
	}

	stored := normalizeAll(turn.ProviderContexts)
	out := ResolvedContext{
		Type:             TypeExtend,
		SessionID:        req.SessionID,
		LastTurnID:       sess.LastTurnID,
		ProviderContexts: map[string]ProviderContext{},
	}
	// Per-provider, not all-or-nothing: a turn can mix providers continuing
	// their history with providers joining fresh.
	for _, p := range req.Providers {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		switch {
		case matchesReset(req.ForcedContextReset, p):
			out.ProviderContexts[p] = NewJoinerContext()
		default:
			if pc, ok := stored[p]; ok {
				out.ProviderContexts[p] = pc
			} else {
				out.ProviderContexts[p] = NewJoinerContext()
			}
		}
	}
	return out, nil
}

// resolveRecompute re-derives context for a single provider/step pair against
// the source turn, so one prior output can be regenerated in place. It is an
// extend scoped to exactly one provider; nothing else's stored state is read
// or disturbed.
func (r *Resolver) resolveRecompute(ctx context.Context, req Request) (ResolvedContext, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return ResolvedContext{}, ErrMissingSessionID
	}
	if strings.TrimSpace(req.SourceTurnID) == "" || strings.TrimSpace(req.TargetProvider) == "" {
		return ResolvedContext{}, fmt.Errorf("%w: recompute requires sourceTurnId and targetProvider", ErrInvalidRequest)
	}
	turn, err := store.GetTurn(ctx, r.Store, req.SourceTurnID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ResolvedContext{}, fmt.Errorf("%w: %s", ErrTurnNotFound, req.SourceTurnID)
		}
		logx.Errorf("resolve recompute: turn lookup %s: %v", req.SourceTurnID, err)
		return ResolvedContext{}, err
	}

	target := strings.TrimSpace(req.TargetProvider)
	out := ResolvedContext{
		Type:             TypeRecompute,
		SessionID:        req.SessionID,
		LastTurnID:       req.SourceTurnID,
		ProviderContexts: map[string]ProviderContext{},
	}
	if raw, ok := turn.ProviderContexts[target]; ok {
		if pc, ok := normalizeStored(raw); ok {
			out.ProviderContexts[target] = pc
			return out, nil
		}
	}
	out.ProviderContexts[target] = NewJoinerContext()
	return out, nil
}

func matchesReset(patterns []string, providerID string) bool {
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if pat == providerID {
			return true
		}
		if ok, err := doublestar.Match(pat, providerID); err == nil && ok {
			return true
		}
	}
	return false
}

func normalizeAll(raw map[string]json.RawMessage) map[string]ProviderContext {
	out := make(map[string]ProviderContext, len(raw))
	for id, rc := range raw {
		pc, ok := normalizeStored(rc)
		if !ok {
			continue
		}
		out[id] = pc
	}
	return out
}

// normalizeStored folds both legacy shapes into the canonical flat one,
// preferring the contents of a nested meta object when present. Anything
// downstream sees only the flat shape.
func normalizeStored(raw json.RawMessage) (ProviderContext, bool) {
	if len(raw) == 0 {
		return ProviderContext{}, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return ProviderContext{}, false
	}
	src := m
	if metaAny, ok := m["meta"]; ok {
		if meta, ok := metaAny.(map[string]any); ok && len(meta) > 0 {
			src = meta
		}
	}

	pc := ProviderContext{
		ConversationID: stringField(src, "conversationId"),
		Cursor:         stringField(src, "cursor"),
		Model:          stringField(src, "model"),
		Token:          stringField(src, "token"),
	}
	if pc == (ProviderContext{}) {
		if b, _ := src["isNewJoiner"].(bool); b {
			return NewJoinerContext(), true
		}
		return ProviderContext{}, false
	}
	return pc, true
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
