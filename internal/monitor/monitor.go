// Package monitor runs the reconciliation loop: a countdown-driven cycle of
// scan, merge, validate and persist, coordinated with UI-declared quiet
// windows. The monitor is the single writer of the position store.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"positionScope/internal/model"
	"positionScope/internal/scanner"
	"positionScope/internal/seed"
	"positionScope/internal/storage"
	"positionScope/internal/store"
	"positionScope/internal/validator"
)

// ChainHead exposes the chain tip.
type ChainHead interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// LogScanner is the scan surface the monitor drives.
type LogScanner interface {
	Scan(ctx context.Context, from, to uint64, stop func() bool) (scanner.Result, error)
}

// OwnerValidator classifies merged candidates.
type OwnerValidator interface {
	Validate(ctx context.Context, candidates []model.Position) (validator.Outcome, error)
}

// BalanceRefresher is the external collaborator invoked at the start of each
// reconciliation. It may be nil.
type BalanceRefresher func(ctx context.Context) error

// Config holds monitor settings.
type Config struct {
	StartBlock       uint64
	CountdownSeconds int
	BlocksPerScan    uint64
	CatchupSleep     time.Duration
	ErrorSleep       time.Duration
	Tick             time.Duration
}

func (c *Config) applyDefaults() {
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = 50
	}
	if c.BlocksPerScan == 0 {
		c.BlocksPerScan = 1996
	}
	if c.CatchupSleep <= 0 {
		c.CatchupSleep = 2 * time.Second
	}
	if c.ErrorSleep <= 0 {
		c.ErrorSleep = 30 * time.Second
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
}

// Monitor owns the reconciliation loop and the flags the UI reads.
type Monitor struct {
	cfg       Config
	store     *store.Store
	scanner   LogScanner
	validator OwnerValidator
	head      ChainHead
	loader    *seed.Loader
	persist   storage.SnapshotStore
	refresh   BalanceRefresher
	logger    *zap.Logger
	metrics   *Metrics

	running        atomic.Bool
	searchingLogs  atomic.Bool
	latestComplete atomic.Bool
	quiet          atomic.Bool
	stopRequested  atomic.Bool

	triggerCh chan struct{}
	doneCh    chan struct{}
}

func New(
	cfg Config,
	positions *store.Store,
	logScanner LogScanner,
	ownerValidator OwnerValidator,
	head ChainHead,
	loader *seed.Loader,
	persist storage.SnapshotStore,
	refresh BalanceRefresher,
	reg prometheus.Registerer,
	logger *zap.Logger,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Monitor{
		cfg:       cfg,
		store:     positions,
		scanner:   logScanner,
		validator: ownerValidator,
		head:      head,
		loader:    loader,
		persist:   persist,
		refresh:   refresh,
		logger:    logger,
		metrics:   NewMetrics(reg),
		triggerCh: make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}
}

// Start seeds the store from the best available snapshot, launches the
// monitoring loop and returns the initial view for the UI.
func (m *Monitor) Start(ctx context.Context) (model.Snapshot, error) {
	if m.running.Swap(true) {
		return m.store.Snapshot(), fmt.Errorf("monitor already running")
	}
	m.stopRequested.Store(false)

	var remote model.Snapshot
	haveRemote := false
	if m.loader != nil {
		remote, haveRemote = m.loader.FetchRemote(ctx)
	}

	var local model.Snapshot
	haveLocal := false
	if m.persist != nil {
		var err error
		local, haveLocal, err = m.persist.Load(ctx)
		if err != nil {
			m.logger.Warn("local snapshot load failed", zap.Error(err))
			haveLocal = false
		}
	}

	chosen, source := seed.Choose(remote, haveRemote, local, haveLocal, m.logger)
	if source != seed.SourceNone {
		m.store.Seed(chosen)
	} else if m.cfg.StartBlock > 0 {
		m.store.SetCursor(m.cfg.StartBlock)
	}

	go m.run(ctx)

	return m.store.Snapshot(), nil
}

// run is the monitoring loop: reconcile, then count down to the next cycle.
func (m *Monitor) run(ctx context.Context) {
	defer func() {
		m.running.Store(false)
		close(m.doneCh)
		m.logger.Info("monitor stopped")
	}()

	for {
		if m.stopRequested.Load() || ctx.Err() != nil {
			return
		}

		if err := m.Reconcile(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			m.metrics.CyclesTotal.WithLabelValues("error").Inc()
			m.logger.Error("reconciliation failed", zap.Error(err))
			if !m.sleep(ctx, m.cfg.ErrorSleep) {
				return
			}
			continue
		}
		m.metrics.CyclesTotal.WithLabelValues("ok").Inc()

		if !m.countdown(ctx) {
			return
		}
	}
}

// countdown ticks once per second down to zero, then defers while a quiet
// window is active. Returns false when the loop should exit.
func (m *Monitor) countdown(ctx context.Context) bool {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	remaining := m.cfg.CountdownSeconds
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-m.triggerCh:
			return !m.stopRequested.Load()
		case <-ticker.C:
			if m.stopRequested.Load() {
				return false
			}
			remaining--
		}
	}

	// The countdown itself already satisfies the minimum period between
	// cycles, so the quiet-window wait only polls for the flag to clear.
	for m.quiet.Load() {
		m.logger.Debug("quiet window active, deferring reconciliation")
		select {
		case <-ctx.Done():
			return false
		case <-m.triggerCh:
			return !m.stopRequested.Load()
		case <-ticker.C:
			if m.stopRequested.Load() {
				return false
			}
		}
	}
	return !m.stopRequested.Load()
}

// Reconcile runs one full cycle: refresh balances, scan from the cursor to
// latest-1 in catch-up windows, validate after each window and persist.
func (m *Monitor) Reconcile(ctx context.Context) error {
	timer := prometheus.NewTimer(m.metrics.CycleDuration)
	defer timer.ObserveDuration()

	m.latestComplete.Store(false)

	if m.refresh != nil {
		if err := m.refresh(ctx); err != nil {
			m.logger.Warn("balance refresh failed", zap.Error(err))
		}
	}

	latest, err := m.head.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}
	if latest == 0 {
		return fmt.Errorf("chain reports block 0")
	}
	target := latest - 1

	cursor := m.store.CurrentBlock()
	if cursor == 0 {
		cursor = m.cfg.StartBlock
	}

	m.searchingLogs.Store(true)
	defer m.searchingLogs.Store(false)

	for cursor <= target {
		if m.stopRequested.Load() || ctx.Err() != nil {
			return ctx.Err()
		}

		windowEnd := cursor + m.cfg.BlocksPerScan - 1
		if windowEnd > target {
			windowEnd = target
		}

		if err := m.reconcileWindow(ctx, cursor, windowEnd); err != nil {
			return err
		}

		cursor = m.store.CurrentBlock()
		if cursor <= windowEnd {
			// The window did not complete (cooperative stop); leave the
			// remainder for the next cycle.
			break
		}

		if cursor <= target {
			if !m.sleep(ctx, m.cfg.CatchupSleep) {
				return ctx.Err()
			}
		}
	}

	m.persistSnapshot(ctx)
	m.latestComplete.Store(true)

	view := m.store.Snapshot()
	m.metrics.CurrentBlock.Set(float64(view.Metadata.CurrentBlock))
	m.metrics.ValidPositions.Set(float64(len(view.ValidPositions)))

	m.logger.Info("reconciliation complete",
		zap.Uint64("current_block", view.Metadata.CurrentBlock),
		zap.Int("valid_positions", len(view.ValidPositions)),
		zap.Int("invalid_positions", len(view.InvalidPositions)),
	)
	return nil
}

// reconcileWindow scans one window, merges, validates and commits. On a
// validation failure the store is left untouched so the previous snapshot
// stays authoritative.
func (m *Monitor) reconcileWindow(ctx context.Context, from, to uint64) error {
	result, scanErr := m.scanner.Scan(ctx, from, to, m.stopRequested.Load)

	m.metrics.CandidatesTotal.Add(float64(len(result.Candidates)))
	m.metrics.SkippedZeroSalt.Add(float64(result.SkippedZeroSalt))

	// Sub-ranges that completed before a failure are still safe to commit;
	// the cursor only covers them.
	if result.NextCursor > from || len(result.Candidates) > 0 {
		merged := m.store.Merge(result.Candidates)
		if len(merged) == 0 {
			m.store.SetCursor(result.NextCursor)
		} else {
			outcome, err := m.validator.Validate(ctx, merged)
			if err != nil {
				if scanErr != nil {
					return fmt.Errorf("scan: %w", scanErr)
				}
				return fmt.Errorf("validate: %w", err)
			}
			m.metrics.UnresolvedTokens.Add(float64(outcome.Unresolved))
			m.metrics.OwnershipChanges.Add(float64(outcome.OwnershipChanges))
			m.store.Commit(outcome.Valid, outcome.Invalid, result.NextCursor)
		}
	}

	if scanErr != nil {
		return fmt.Errorf("scan: %w", scanErr)
	}
	return nil
}

// persistSnapshot writes the current snapshot. Failures are logged and
// ignored; the next cycle re-attempts.
func (m *Monitor) persistSnapshot(ctx context.Context) {
	if m.persist == nil {
		return
	}
	if err := m.persist.Save(ctx, m.store.Snapshot()); err != nil {
		m.logger.Warn("snapshot persist failed", zap.Error(err))
	}
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-m.triggerCh:
		return !m.stopRequested.Load()
	case <-timer.C:
		return !m.stopRequested.Load()
	}
}

// TriggerRefresh preempts the current countdown or wait, forcing a
// reconciliation on the next loop iteration. An in-progress scan is not
// interrupted.
func (m *Monitor) TriggerRefresh() {
	select {
	case m.triggerCh <- struct{}{}:
	default:
	}
}

// ResetCountdown clears the current countdown and immediately forces a
// reconciliation.
func (m *Monitor) ResetCountdown() {
	m.TriggerRefresh()
}

// Stop requests a cooperative exit. The loop finishes its current sub-range
// and stops without aborting in-flight RPCs.
func (m *Monitor) Stop() {
	m.stopRequested.Store(true)
	m.TriggerRefresh()
}

// Done is closed once the loop has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.doneCh
}

// SetQuiet marks a user interaction in progress. While set, the scheduler
// defers reconciliations that come due.
func (m *Monitor) SetQuiet(quiet bool) {
	m.quiet.Store(quiet)
}

// ResetScanState drops the persisted snapshot and clears the store; the
// next reconciliation starts over from the configured start block.
func (m *Monitor) ResetScanState(ctx context.Context) {
	if m.persist != nil {
		if err := m.persist.Remove(ctx); err != nil {
			m.logger.Warn("snapshot remove failed", zap.Error(err))
		}
	}
	m.store.Reset()
	if m.cfg.StartBlock > 0 {
		m.store.SetCursor(m.cfg.StartBlock)
	}
	m.TriggerRefresh()
}

// ValidPositions returns the current valid set.
func (m *Monitor) ValidPositions() []model.Position { return m.store.ValidPositions() }

// NFTOwners returns the current owner map.
func (m *Monitor) NFTOwners() map[string]string { return m.store.NFTOwners() }

// CurrentBlock returns the cursor.
func (m *Monitor) CurrentBlock() uint64 { return m.store.CurrentBlock() }

// IsRunning reports whether the loop is active.
func (m *Monitor) IsRunning() bool { return m.running.Load() }

// IsSearchingLogs reports whether a scan is in progress.
func (m *Monitor) IsSearchingLogs() bool { return m.searchingLogs.Load() }

// IsLatestSearchComplete reports whether the last cycle reached the tip.
func (m *Monitor) IsLatestSearchComplete() bool { return m.latestComplete.Load() }
