package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionScope/internal/model"
)

// Store provides Postgres persistence for snapshots. One row per named
// snapshot; the payload is the full serialized snapshot.
type Store struct {
	pool *pgxpool.Pool
	name string
}

func NewStore(ctx context.Context, dsn, name string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if name == "" {
		name = "default"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool, name: name}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS position_snapshots (
			name          text PRIMARY KEY,
			current_block bigint NOT NULL,
			payload       jsonb NOT NULL,
			updated_at    timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, if any.
func (s *Store) Load(ctx context.Context) (model.Snapshot, bool, error) {
	var payload []byte
	row := s.pool.QueryRow(ctx, `SELECT payload FROM position_snapshots WHERE name=$1`, s.name)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot payload: %w", err)
	}
	return snap, true, nil
}

// Save upserts the snapshot row.
func (s *Store) Save(ctx context.Context, snap model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO position_snapshots (name, current_block, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET current_block = EXCLUDED.current_block,
		    payload = EXCLUDED.payload,
		    updated_at = now()
	`, s.name, int64(snap.Metadata.CurrentBlock), payload)
	return err
}

// Remove deletes the snapshot row.
func (s *Store) Remove(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM position_snapshots WHERE name=$1`, s.name)
	return err
}
