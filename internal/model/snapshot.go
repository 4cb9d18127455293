package model

import "time"

// SnapshotMetadata describes the provenance of a serialized snapshot.
type SnapshotMetadata struct {
	CurrentBlock        uint64 `json:"current_block"`
	LastUpdated         string `json:"last_updated"`
	TotalValidPositions int    `json:"total_valid_positions"`
	TotalNFTOwners      int    `json:"total_nft_owners"`
}

// Snapshot is the serialized form of the position store.
type Snapshot struct {
	Metadata         SnapshotMetadata  `json:"metadata"`
	ValidPositions   []Position        `json:"valid_positions"`
	InvalidPositions []Position        `json:"invalid_positions"`
	NFTOwners        map[string]string `json:"nft_owners"`
}

// NewSnapshot builds a snapshot with metadata derived from its contents.
func NewSnapshot(currentBlock uint64, valid, invalid []Position, owners map[string]string) Snapshot {
	if owners == nil {
		owners = make(map[string]string)
	}
	return Snapshot{
		Metadata: SnapshotMetadata{
			CurrentBlock:        currentBlock,
			LastUpdated:         time.Now().UTC().Format(time.RFC3339),
			TotalValidPositions: len(valid),
			TotalNFTOwners:      len(owners),
		},
		ValidPositions:   valid,
		InvalidPositions: invalid,
		NFTOwners:        owners,
	}
}

// Usable reports whether the snapshot carries enough metadata to seed the
// store. A snapshot without a current block cannot position the cursor.
func (s *Snapshot) Usable() bool {
	return s != nil && s.Metadata.CurrentBlock > 0
}
