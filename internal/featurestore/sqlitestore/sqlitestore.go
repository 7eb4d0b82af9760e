// Package sqlitestore persists feature records in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/featurestore"
	"github.com/discochess/persona/internal/game"
)

// Compile-time check that Store implements featurestore.Store.
var _ featurestore.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS game_features (
	username    TEXT NOT NULL,
	platform    TEXT NOT NULL,
	game_id     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	eco         TEXT NOT NULL DEFAULT '',
	rated_moves INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (username, platform, game_id)
);

CREATE INDEX IF NOT EXISTS idx_game_features_player
	ON game_features (username, platform);
`

const upsert = `
INSERT INTO game_features (username, platform, game_id, outcome, eco, rated_moves, payload, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (username, platform, game_id) DO UPDATE SET
	outcome     = excluded.outcome,
	eco         = excluded.eco,
	rated_moves = excluded.rated_moves,
	payload     = excluded.payload,
	updated_at  = excluded.updated_at`

// Store is a SQLite feature store. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// A single connection serializes writers from concurrent workers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: migrate %s: %w", path, err)
		}
	}

	s.db = db
	s.logger.Debug("feature store opened", zap.String("path", path))
	return s, nil
}

// Put inserts f or replaces the record with the same key.
func (s *Store) Put(ctx context.Context, f features.GameFeatures) error {
	if s.closed.Load() {
		return featurestore.ErrClosed
	}
	if err := f.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(&f)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode %s: %w", f.Key, err)
	}
	_, err = s.db.ExecContext(ctx, upsert,
		f.Key.User, f.Key.Platform, f.Key.GameID,
		string(f.Outcome), f.ECO, f.RatedMoves,
		string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: put %s: %w", f.Key, err)
	}
	return nil
}

// Get returns the record for key.
func (s *Store) Get(ctx context.Context, key game.Key) (features.GameFeatures, error) {
	if s.closed.Load() {
		return features.GameFeatures{}, featurestore.ErrClosed
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM game_features WHERE username = ? AND platform = ? AND game_id = ?`,
		key.User, key.Platform, key.GameID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return features.GameFeatures{}, featurestore.ErrNotFound
	}
	if err != nil {
		return features.GameFeatures{}, fmt.Errorf("sqlitestore: get %s: %w", key, err)
	}
	return decode(payload)
}

// List returns the matching records ordered by key.
func (s *Store) List(ctx context.Context, q featurestore.Query) ([]features.GameFeatures, error) {
	if s.closed.Load() {
		return nil, featurestore.ErrClosed
	}

	var (
		where []string
		args  []any
	)
	if q.User != "" {
		where = append(where, "username = ?")
		args = append(args, q.User)
	}
	if q.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, q.Platform)
	}
	query := "SELECT payload FROM game_features"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY username, platform, game_id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()

	var out []features.GameFeatures
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlitestore: list: %w", err)
		}
		f, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_features`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlitestore: count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return featurestore.ErrClosed
	}
	return s.db.Close()
}

func decode(payload string) (features.GameFeatures, error) {
	var f features.GameFeatures
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return features.GameFeatures{}, fmt.Errorf("sqlitestore: decode: %w", err)
	}
	return f, nil
}
