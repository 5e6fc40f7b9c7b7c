package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	CollectionSessions = "sessions"
	CollectionTurns    = "turns"
)

// ErrNotFound reports a missing record. Infrastructure failures from a
// concrete store are returned as-is and never folded into this sentinel.
var ErrNotFound = errors.New("record not found")

// Store is the read side of the session store. Chorus core only ever reads
// session and turn records through this narrow contract.
type Store interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
}

// TurnSink is the write side used by the workflow orchestrator after each
// exchange. Kept separate so the resolver can be handed a read-only store.
type TurnSink interface {
	PutTurn(ctx context.Context, turn Turn) error
}

type Session struct {
	ID         string `json:"id"`
	LastTurnID string `json:"lastTurnId,omitempty"`
}

// Turn holds per-provider continuation state for one exchange. Provider
// contexts stay raw here: persisted data carries two legacy shapes and the
// resolver owns normalization.
type Turn struct {
	ID               string                     `json:"id"`
	SessionID        string                     `json:"sessionId"`
	ProviderContexts map[string]json.RawMessage `json:"providerContexts,omitempty"`
}

func GetSession(ctx context.Context, s Store, id string) (Session, error) {
	raw, err := s.Get(ctx, CollectionSessions, id)
	if err != nil {
		return Session{}, err
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

func GetTurn(ctx context.Context, s Store, id string) (Turn, error) {
	raw, err := s.Get(ctx, CollectionTurns, id)
	if err != nil {
		return Turn{}, err
	}
	var out Turn
	if err := json.Unmarshal(raw, &out); err != nil {
		return Turn{}, fmt.Errorf("decode turn %s: %w", id, err)
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}
