// Copyright 2025 Mangwale
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// sqlStore is the durable Store backend: sqlite for local/dev
// deployments, postgres for production, selected by the driverName
// the caller passes to NewSQLStore alongside the DSN.
//
// SQLite only tolerates one writer, so sql.DB's connection pool is
// pinned to a single connection for that driver, which serializes
// same-key writes for free. Postgres gets a normal
// pool since the KeyedMutex is what actually protects a given
// participant's read-modify-write there.
type sqlStore struct {
	db         *sql.DB
	driverName string
	keyed      *KeyedMutex
}

// NewSQLStore opens (and migrates) a SQL-backed Store. driverName is
// "sqlite3" or "postgres".
func NewSQLStore(driverName, dsn string) (Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", driverName, err)
	}

	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &sqlStore{db: db, driverName: driverName, keyed: NewKeyedMutex()}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		current_step TEXT NOT NULL DEFAULT '',
		data_json TEXT NOT NULL DEFAULT '{}',
		last_update_time TIMESTAMP NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, key string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT current_step, data_json, last_update_time FROM sessions WHERE session_key = ?`),
		key)
	return s.scan(key, row)
}

func (s *sqlStore) scan(key string, row *sql.Row) (*Session, error) {
	var step string
	var dataJSON string
	var lastUpdate sql.NullTime

	if err := row.Scan(&step, &dataJSON, &lastUpdate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: scan %s: %w", key, err)
	}

	sess := &Session{Key: key, CurrentStep: Step(step)}
	if lastUpdate.Valid {
		sess.LastUpdateTime = lastUpdate.Time
	}
	if err := json.Unmarshal([]byte(dataJSON), &sess.Data); err != nil {
		return nil, fmt.Errorf("session: unmarshal data for %s: %w", key, err)
	}
	return sess, nil
}

func (s *sqlStore) Create(ctx context.Context, key string) (*Session, error) {
	unlock := s.keyed.Lock(key)
	defer unlock()

	if existing, err := s.Get(ctx, key); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sess := New(key)
	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Mutate performs the load/apply/save sequence under the per-key
// lock, so same-key read-modify-writes never interleave.
func (s *sqlStore) Mutate(ctx context.Context, key string, fn Patch) (*Session, error) {
	unlock := s.keyed.Lock(key)
	defer unlock()

	sess, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		sess = New(key)
	} else if err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *sqlStore) persist(ctx context.Context, sess *Session) error {
	dataJSON, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("session: marshal data for %s: %w", sess.Key, err)
	}

	var q string
	switch s.driverName {
	case "postgres":
		q = `INSERT INTO sessions (session_key, current_step, data_json, last_update_time)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (session_key) DO UPDATE SET
				current_step = EXCLUDED.current_step,
				data_json = EXCLUDED.data_json,
				last_update_time = EXCLUDED.last_update_time`
	default:
		q = `INSERT INTO sessions (session_key, current_step, data_json, last_update_time)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (session_key) DO UPDATE SET
				current_step = excluded.current_step,
				data_json = excluded.data_json,
				last_update_time = excluded.last_update_time`
	}

	if _, err := s.db.ExecContext(ctx, q, sess.Key, string(sess.CurrentStep), string(dataJSON)); err != nil {
		return fmt.Errorf("session: persist %s: %w", sess.Key, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE session_key = ?`), key)
	if err != nil {
		slog.Error("session: delete failed", "key", key, "error", err)
		return fmt.Errorf("session: delete %s: %w", key, err)
	}
	return nil
}

// rebind swaps ? placeholders for $N when talking to postgres.
func (s *sqlStore) rebind(query string) string {
	if s.driverName != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			out = append(out, []byte(fmt.Sprintf("$%d", n))...)
			n++
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
