package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);`

// SQLiteStore persists sessions and turns in a single records table keyed by
// (collection, id), mirroring the key-value contract of the read interface.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store ping %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store schema %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var body sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM records WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get %s/%s: %w", collection, id, err)
	}
	if !body.Valid {
		return nil, ErrNotFound
	}
	return json.RawMessage(body.String), nil
}

func (s *SQLiteStore) put(ctx context.Context, tx *sql.Tx, collection, id string, raw json.RawMessage) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO records (collection, id, body) VALUES (?, ?, ?) "+
			"ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body",
		collection, id, string(raw),
	)
	return err
}

// PutTurn writes the turn and advances the session's lastTurnId in one
// transaction so a crash never leaves a session pointing at a missing turn.
func (s *SQLiteStore) PutTurn(ctx context.Context, turn Turn) error {
	if turn.ID == "" {
		return fmt.Errorf("turn id is required")
	}
	rawTurn, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.put(ctx, tx, CollectionTurns, turn.ID, rawTurn); err != nil {
		return fmt.Errorf("store put turn %s: %w", turn.ID, err)
	}
	if turn.SessionID != "" {
		sess := Session{ID: turn.SessionID}
		var body sql.NullString
		err := tx.QueryRowContext(ctx,
			"SELECT body FROM records WHERE collection = ? AND id = ?",
			CollectionSessions, turn.SessionID,
		).Scan(&body)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("store get session %s: %w", turn.SessionID, err)
		}
		if body.Valid {
			_ = json.Unmarshal([]byte(body.String), &sess)
		}
		sess.LastTurnID = turn.ID
		rawSess, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		if err := s.put(ctx, tx, CollectionSessions, turn.SessionID, rawSess); err != nil {
			return fmt.Errorf("store put session %s: %w", turn.SessionID, err)
		}
	}
	return tx.Commit()
}
