package storage

import (
	"context"

	"positionScope/internal/model"
)

// SnapshotStore persists the single authoritative snapshot.
type SnapshotStore interface {
	Load(ctx context.Context) (model.Snapshot, bool, error)
	Save(ctx context.Context, snap model.Snapshot) error
	Remove(ctx context.Context) error
}
