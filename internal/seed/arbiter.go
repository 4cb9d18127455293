package seed

import (
	"go.uber.org/zap"

	"positionScope/internal/model"
)

// Source names where the chosen snapshot came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceNone   Source = "none"
)

// Choose arbitrates between the remote seed and the locally persisted
// snapshot. The further-along source wins to minimize re-scan work; a tie
// favors remote so a corrupted local copy self-heals.
func Choose(remote model.Snapshot, haveRemote bool, local model.Snapshot, haveLocal bool, logger *zap.Logger) (model.Snapshot, Source) {
	if logger == nil {
		logger = zap.NewNop()
	}
	haveLocal = haveLocal && local.Usable()
	haveRemote = haveRemote && remote.Usable()

	switch {
	case haveLocal && haveRemote && local.Metadata.CurrentBlock > remote.Metadata.CurrentBlock:
		logger.Info("using local snapshot",
			zap.Uint64("local_block", local.Metadata.CurrentBlock),
			zap.Uint64("remote_block", remote.Metadata.CurrentBlock),
		)
		return local, SourceLocal
	case haveRemote:
		logger.Info("using remote snapshot", zap.Uint64("remote_block", remote.Metadata.CurrentBlock))
		return remote, SourceRemote
	case haveLocal:
		logger.Info("using local snapshot, no remote available", zap.Uint64("local_block", local.Metadata.CurrentBlock))
		return local, SourceLocal
	default:
		logger.Info("no snapshot available, starting from configured block")
		return model.Snapshot{}, SourceNone
	}
}
