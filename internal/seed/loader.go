package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"positionScope/internal/model"
)

// Loader fetches a pre-indexed snapshot from the primary endpoint, falling
// back to the backup on any failure.
type Loader struct {
	primaryURL string
	backupURL  string
	client     *http.Client
	logger     *zap.Logger
}

func NewLoader(primaryURL, backupURL string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		primaryURL: primaryURL,
		backupURL:  backupURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// FetchRemote returns the first usable remote snapshot, or ok=false when
// both endpoints fail. A payload without metadata.current_block is rejected.
func (l *Loader) FetchRemote(ctx context.Context) (model.Snapshot, bool) {
	for _, url := range []string{l.primaryURL, l.backupURL} {
		if url == "" {
			continue
		}
		snap, err := l.fetch(ctx, url)
		if err != nil {
			l.logger.Warn("seed fetch failed", zap.String("url", url), zap.Error(err))
			continue
		}
		if !snap.Usable() {
			l.logger.Warn("seed snapshot missing current_block", zap.String("url", url))
			continue
		}
		l.logger.Info("seed snapshot loaded",
			zap.String("url", url),
			zap.Uint64("current_block", snap.Metadata.CurrentBlock),
			zap.Int("valid_positions", len(snap.ValidPositions)),
		)
		return snap, true
	}
	return model.Snapshot{}, false
}

func (l *Loader) fetch(ctx context.Context, url string) (model.Snapshot, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := l.client.Do(req)
		if err != nil {
			return fmt.Errorf("perform request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited (429)")
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = time.Minute
	b.RandomizationFactor = 0.5

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return model.Snapshot{}, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}
