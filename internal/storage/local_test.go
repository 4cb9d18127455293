package storage

import (
	"context"
	"path/filepath"
	"testing"

	"positionScope/internal/model"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "positions.json")
	fs := NewFileStore(path)
	ctx := context.Background()

	snap := model.NewSnapshot(12345,
		[]model.Position{{TokenID: "1", Owner: "0xaa", PoolID: "0x01"}},
		nil,
		map[string]string{"1": "0xaa"},
	)
	if err := fs.Save(ctx, snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, ok, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot to exist")
	}
	if loaded.Metadata.CurrentBlock != 12345 {
		t.Fatalf("current block mismatch: %d", loaded.Metadata.CurrentBlock)
	}
	if len(loaded.ValidPositions) != 1 || loaded.ValidPositions[0].TokenID != "1" {
		t.Fatalf("positions mismatch: %+v", loaded.ValidPositions)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	_, ok, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("missing file is not an error: %v", err)
	}
	if ok {
		t.Fatalf("missing file should report ok=false")
	}
}

func TestFileStoreRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	fs := NewFileStore(path)
	ctx := context.Background()

	if err := fs.Save(ctx, model.NewSnapshot(1, nil, nil, nil)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := fs.Remove(ctx); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := fs.Remove(ctx); err != nil {
		t.Fatalf("double remove should be a no-op: %v", err)
	}

	_, ok, err := fs.Load(ctx)
	if err != nil || ok {
		t.Fatalf("snapshot should be gone: ok=%v err=%v", ok, err)
	}
}
