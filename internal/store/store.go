package store

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"positionScope/internal/model"
)

// Store is the authoritative in-memory set of positions. The reconciliation
// loop is the only writer; readers get consistent views through an atomic
// snapshot pointer, so accessors never block the pipeline.
type Store struct {
	mu      sync.Mutex
	valid   map[string]model.Position
	invalid map[string]model.Position
	owners  map[string]string
	cursor  uint64

	view   atomic.Pointer[model.Snapshot]
	logger *zap.Logger
}

func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		valid:   make(map[string]model.Position),
		invalid: make(map[string]model.Position),
		owners:  make(map[string]string),
		logger:  logger,
	}
	s.publishView()
	return s
}

// Seed loads a chosen snapshot into the store, normalizing every record.
// Records without a token id are dropped with a log line.
func (s *Store) Seed(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valid = make(map[string]model.Position, len(snap.ValidPositions))
	s.invalid = make(map[string]model.Position, len(snap.InvalidPositions))
	for _, p := range snap.ValidPositions {
		p.Normalize()
		if p.TokenID == "" || p.TokenID == "0" {
			s.logger.Warn("dropping seeded record without token id", zap.String("tx", p.TxHash))
			continue
		}
		s.valid[p.TokenID] = p
	}
	for _, p := range snap.InvalidPositions {
		p.Normalize()
		if p.TokenID == "" || p.TokenID == "0" {
			s.logger.Warn("dropping seeded record without token id", zap.String("tx", p.TxHash))
			continue
		}
		if _, dup := s.valid[p.TokenID]; dup {
			continue
		}
		s.invalid[p.TokenID] = p
	}

	s.owners = make(map[string]string, len(snap.NFTOwners))
	for tokenID, owner := range snap.NFTOwners {
		s.owners[tokenID] = strings.ToLower(owner)
	}
	s.cursor = snap.Metadata.CurrentBlock

	s.publishView()
}

// Merge overlays new candidates on the existing record set and returns the
// merged candidate list for validation. Existing records are replaced in
// full when a candidate shares their token id. The store itself is not
// mutated; the merge output becomes authoritative only via Commit.
func (s *Store) Merge(candidates []model.Position) []model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]model.Position, len(s.valid)+len(s.invalid)+len(candidates))
	for id, p := range s.valid {
		merged[id] = p
	}
	for id, p := range s.invalid {
		merged[id] = p
	}
	for _, p := range candidates {
		p.Normalize()
		if p.TokenID == "" || p.TokenID == "0" {
			s.logger.Warn("dropping candidate without token id",
				zap.String("tx", p.TxHash),
				zap.Uint64("block", p.BlockNumber),
			)
			continue
		}
		merged[p.TokenID] = p
	}

	out := make([]model.Position, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// Commit atomically replaces the valid set, invalid set and owner map, and
// advances the cursor. The owner map is rebuilt from the valid set so the
// two can never disagree.
func (s *Store) Commit(valid, invalid []model.Position, cursor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newValid := make(map[string]model.Position, len(valid))
	newOwners := make(map[string]string, len(valid))
	for _, p := range valid {
		p.Normalize()
		newValid[p.TokenID] = p
		newOwners[p.TokenID] = p.Owner
	}
	newInvalid := make(map[string]model.Position, len(invalid))
	for _, p := range invalid {
		p.Normalize()
		newInvalid[p.TokenID] = p
	}

	s.valid = newValid
	s.invalid = newInvalid
	s.owners = newOwners
	if cursor > s.cursor {
		s.cursor = cursor
	}

	s.publishView()
}

// SetCursor advances the cursor without touching the record sets. The
// cursor never moves backwards.
func (s *Store) SetCursor(cursor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cursor > s.cursor {
		s.cursor = cursor
		s.publishView()
	}
}

// Reset clears all state, returning the store to its empty form.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = make(map[string]model.Position)
	s.invalid = make(map[string]model.Position)
	s.owners = make(map[string]string)
	s.cursor = 0
	s.publishView()
}

// publishView rebuilds the immutable snapshot readers see. Must be called
// with the lock held.
func (s *Store) publishView() {
	valid := make([]model.Position, 0, len(s.valid))
	for _, p := range s.valid {
		valid = append(valid, p)
	}
	invalid := make([]model.Position, 0, len(s.invalid))
	for _, p := range s.invalid {
		invalid = append(invalid, p)
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].TokenID < valid[j].TokenID })
	sort.Slice(invalid, func(i, j int) bool { return invalid[i].TokenID < invalid[j].TokenID })

	owners := make(map[string]string, len(s.owners))
	for id, owner := range s.owners {
		owners[id] = owner
	}

	snap := model.NewSnapshot(s.cursor, valid, invalid, owners)
	s.view.Store(&snap)
}

// Snapshot returns the current serialized view.
func (s *Store) Snapshot() model.Snapshot {
	return *s.view.Load()
}

// ValidPositions returns a copy of the valid set.
func (s *Store) ValidPositions() []model.Position {
	view := s.view.Load()
	out := make([]model.Position, len(view.ValidPositions))
	copy(out, view.ValidPositions)
	return out
}

// NFTOwners returns a copy of the owner map.
func (s *Store) NFTOwners() map[string]string {
	view := s.view.Load()
	out := make(map[string]string, len(view.NFTOwners))
	for id, owner := range view.NFTOwners {
		out[id] = owner
	}
	return out
}

// CurrentBlock returns the cursor: the next block to scan.
func (s *Store) CurrentBlock() uint64 {
	return s.view.Load().Metadata.CurrentBlock
}
