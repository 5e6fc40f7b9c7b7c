package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is the in-process store used by tests and the CLI default.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]map[string]json.RawMessage{}}
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.records[collection]
	if !ok {
		return nil, ErrNotFound
	}
	raw, ok := coll[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage{}, raw...), nil
}

// Put stores a raw record. Tests seed legacy-shaped provider contexts with it.
func (m *MemoryStore) Put(collection, id string, raw json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.records[collection]
	if !ok {
		coll = map[string]json.RawMessage{}
		m.records[collection] = coll
	}
	coll[id] = append(json.RawMessage{}, raw...)
}

// PutTurn stores the turn and advances the owning session's lastTurnId.
func (m *MemoryStore) PutTurn(ctx context.Context, turn Turn) error {
	_ = ctx
	if turn.ID == "" {
		return fmt.Errorf("turn id is required")
	}
	rawTurn, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	turns, ok := m.records[CollectionTurns]
	if !ok {
		turns = map[string]json.RawMessage{}
		m.records[CollectionTurns] = turns
	}
	turns[turn.ID] = rawTurn

	if turn.SessionID == "" {
		return nil
	}
	sessions, ok := m.records[CollectionSessions]
	if !ok {
		sessions = map[string]json.RawMessage{}
		m.records[CollectionSessions] = sessions
	}
	sess := Session{ID: turn.SessionID}
	if raw, ok := sessions[turn.SessionID]; ok {
		_ = json.Unmarshal(raw, &sess)
	}
	sess.LastTurnID = turn.ID
	rawSess, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	sessions[turn.SessionID] = rawSess
	return nil
}
