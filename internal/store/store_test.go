package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionScope/internal/model"
)

func pos(tokenID, owner string, block uint64) model.Position {
	return model.Position{
		TokenID:     tokenID,
		Owner:       owner,
		BlockNumber: block,
		PoolID:      "0x01",
	}
}

func TestSeedNormalizesAndDropsKeyless(t *testing.T) {
	s := New(nil)
	s.Seed(model.Snapshot{
		Metadata: model.SnapshotMetadata{CurrentBlock: 500},
		ValidPositions: []model.Position{
			pos("1", "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", 10),
			pos("", "0xbb", 11),
		},
		InvalidPositions: []model.Position{pos("2", model.OwnerUnknown, 12)},
		NFTOwners:        map[string]string{"1": "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
	})

	valid := s.ValidPositions()
	require.Len(t, valid, 1)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", valid[0].Owner)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", s.NFTOwners()["1"])
	assert.Equal(t, uint64(500), s.CurrentBlock())

	snap := s.Snapshot()
	assert.Len(t, snap.InvalidPositions, 1)
}

func TestSeedValidWinsDuplicateTokenID(t *testing.T) {
	s := New(nil)
	s.Seed(model.Snapshot{
		Metadata:         model.SnapshotMetadata{CurrentBlock: 1},
		ValidPositions:   []model.Position{pos("7", "0xaa", 10)},
		InvalidPositions: []model.Position{pos("7", model.OwnerUnknown, 9)},
	})

	snap := s.Snapshot()
	assert.Len(t, snap.ValidPositions, 1)
	assert.Empty(t, snap.InvalidPositions)
}

func TestMergeOverlaysWithoutMutating(t *testing.T) {
	s := New(nil)
	s.Seed(model.Snapshot{
		Metadata:       model.SnapshotMetadata{CurrentBlock: 100},
		ValidPositions: []model.Position{pos("1", "0xaa", 50)},
	})

	merged := s.Merge([]model.Position{
		pos("1", "", 120), // replaces existing record in the merge output
		pos("2", "", 121),
		pos("0", "", 122), // keyless, dropped
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "1", merged[0].TokenID)
	assert.Equal(t, uint64(120), merged[0].BlockNumber)
	assert.Equal(t, "2", merged[1].TokenID)

	// store untouched until Commit
	assert.Len(t, s.ValidPositions(), 1)
	assert.Equal(t, uint64(50), s.ValidPositions()[0].BlockNumber)
}

func TestMergeLaterCandidateWins(t *testing.T) {
	s := New(nil)
	merged := s.Merge([]model.Position{
		pos("9", "", 10),
		pos("9", "", 20),
	})
	require.Len(t, merged, 1)
	assert.Equal(t, uint64(20), merged[0].BlockNumber)
}

func TestCommitRebuildsOwnerMap(t *testing.T) {
	s := New(nil)
	s.Seed(model.Snapshot{
		Metadata:       model.SnapshotMetadata{CurrentBlock: 10},
		ValidPositions: []model.Position{pos("1", "0xaa", 5)},
		NFTOwners:      map[string]string{"1": "0xaa", "stale": "0xdd"},
	})

	s.Commit(
		[]model.Position{pos("2", "0xBB", 30)},
		[]model.Position{pos("1", model.OwnerUnknown, 31)},
		200,
	)

	owners := s.NFTOwners()
	assert.Equal(t, map[string]string{"2": "0xbb"}, owners)
	assert.Equal(t, uint64(200), s.CurrentBlock())

	snap := s.Snapshot()
	require.Len(t, snap.ValidPositions, 1)
	assert.Equal(t, "2", snap.ValidPositions[0].TokenID)
	require.Len(t, snap.InvalidPositions, 1)
	assert.Equal(t, "1", snap.InvalidPositions[0].TokenID)
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	s := New(nil)
	s.SetCursor(100)
	s.SetCursor(80)
	assert.Equal(t, uint64(100), s.CurrentBlock())

	s.Commit(nil, nil, 90)
	assert.Equal(t, uint64(100), s.CurrentBlock())

	s.Commit(nil, nil, 150)
	assert.Equal(t, uint64(150), s.CurrentBlock())
}

func TestResetClearsEverything(t *testing.T) {
	s := New(nil)
	s.Seed(model.Snapshot{
		Metadata:       model.SnapshotMetadata{CurrentBlock: 40},
		ValidPositions: []model.Position{pos("1", "0xaa", 5)},
	})
	s.Reset()

	assert.Empty(t, s.ValidPositions())
	assert.Empty(t, s.NFTOwners())
	assert.Equal(t, uint64(0), s.CurrentBlock())
}

func TestSnapshotViewIsolatedFromWriter(t *testing.T) {
	s := New(nil)
	s.Commit([]model.Position{pos("1", "0xaa", 5)}, nil, 10)

	snap := s.Snapshot()
	s.Commit([]model.Position{pos("2", "0xbb", 6)}, nil, 20)

	require.Len(t, snap.ValidPositions, 1)
	assert.Equal(t, "1", snap.ValidPositions[0].TokenID)
}
