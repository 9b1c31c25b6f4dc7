// Package store provides data persistence implementations.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"cryptolens/internal/logging"
	"cryptolens/internal/models"
)

// Source fetches listings and history from the remote API.
type Source interface {
	ListCryptos(ctx context.Context) ([]models.Crypto, error)
	GetHistory(ctx context.Context, id string) (models.Series, error)
}

// SyncStatus represents the current sync status.
type SyncStatus struct {
	DataType     SyncDataType `json:"data_type"`
	LastSync     time.Time    `json:"last_sync"`
	IsStale      bool         `json:"is_stale"`
	StaleMinutes int          `json:"stale_minutes"`
	LatestRow    time.Time    `json:"latest_row,omitzero"`
}

// SyncConfig holds configuration for the syncer.
type SyncConfig struct {
	// StaleAfter is how old synced data can be before it's considered stale.
	StaleAfter time.Duration
	// Workers bounds concurrent history downloads.
	Workers int
	// TopN limits a full sync to the first N listed coins. Zero syncs all.
	TopN int
}

// DefaultSyncConfig returns default sync configuration.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		StaleAfter: 24 * time.Hour,
		Workers:    4,
		TopN:       20,
	}
}

// HistorySyncResult is the outcome of one coin's history sync.
type HistorySyncResult struct {
	CryptoID string
	Fetched  int
	Inserted int
	Err      error
}

// SyncReport summarizes a sync run.
type SyncReport struct {
	Listed  int
	History []HistorySyncResult
	Elapsed time.Duration
}

// Failed returns the number of coins whose history sync failed.
func (r *SyncReport) Failed() int {
	n := 0
	for _, h := range r.History {
		if h.Err != nil {
			n++
		}
	}
	return n
}

// Syncer copies the remote listing and history into the store.
type Syncer struct {
	store  DataStore
	source Source
	config SyncConfig
	logger zerolog.Logger

	mu             sync.RWMutex
	onSyncComplete func(report *SyncReport)
}

// NewSyncer creates a new syncer.
func NewSyncer(store DataStore, source Source, config SyncConfig, logger zerolog.Logger) *Syncer {
	if config.Workers <= 0 {
		config.Workers = DefaultSyncConfig().Workers
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultSyncConfig().StaleAfter
	}
	return &Syncer{
		store:  store,
		source: source,
		config: config,
		logger: logger.With().Str("component", "syncer").Logger(),
	}
}

// SetSyncCompleteCallback sets the callback for when a sync run completes.
func (s *Syncer) SetSyncCompleteCallback(fn func(report *SyncReport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSyncComplete = fn
}

// SyncListing refreshes the stored listing and returns it.
func (s *Syncer) SyncListing(ctx context.Context) ([]models.Crypto, error) {
	cryptos, err := s.source.ListCryptos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	if err := s.store.SaveCryptos(ctx, cryptos); err != nil {
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}
	if err := s.store.SetLastSync(string(SyncTypeListing), time.Now()); err != nil {
		return nil, err
	}
	s.logger.Info().Int("count", len(cryptos)).Msg("Listing synced")
	return cryptos, nil
}

// SyncHistory downloads and merges the history of each id concurrently.
// Per-coin failures are reported in the results and joined into the error.
func (s *Syncer) SyncHistory(ctx context.Context, ids []string) ([]HistorySyncResult, error) {
	results := make([]HistorySyncResult, len(ids))
	p := pool.New().WithMaxGoroutines(s.config.Workers).WithContext(ctx)

	for i, id := range ids {
		i, id := i, id
		p.Go(func(ctx context.Context) error {
			res := s.syncOne(ctx, id)
			results[i] = res
			if res.Err != nil {
				return fmt.Errorf("%s: %w", id, res.Err)
			}
			return nil
		})
	}

	err := p.Wait()
	return results, err
}

func (s *Syncer) syncOne(ctx context.Context, id string) HistorySyncResult {
	res := HistorySyncResult{CryptoID: id}
	logger := logging.WithCrypto(logging.WithOperation(s.logger, "sync_history"), id)
	points, err := s.source.GetHistory(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("History fetch failed")
		res.Err = err
		return res
	}
	res.Fetched = len(points)

	inserted, err := s.store.SaveHistory(ctx, id, points)
	if err != nil {
		res.Err = err
		return res
	}
	res.Inserted = inserted

	if err := s.store.SetLastSync(string(HistorySyncType(id)), time.Now()); err != nil {
		res.Err = err
		return res
	}
	logger.Debug().Int("fetched", res.Fetched).Int("inserted", inserted).Msg("History synced")
	return res
}

// Run syncs the listing and then the history of ids. With no ids it syncs
// the top coins of the fresh listing.
func (s *Syncer) Run(ctx context.Context, ids []string) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{}

	cryptos, err := s.SyncListing(ctx)
	if err != nil {
		return nil, err
	}
	report.Listed = len(cryptos)

	if len(ids) == 0 {
		for i, c := range cryptos {
			if s.config.TopN > 0 && i >= s.config.TopN {
				break
			}
			ids = append(ids, c.ID)
		}
	}

	report.History, err = s.SyncHistory(ctx, ids)
	report.Elapsed = time.Since(start)

	s.logger.Info().
		Int("listed", report.Listed).
		Int("coins", len(report.History)).
		Int("failed", report.Failed()).
		Dur("elapsed", report.Elapsed).
		Msg("Sync completed")

	s.mu.RLock()
	callback := s.onSyncComplete
	s.mu.RUnlock()
	if callback != nil {
		callback(report)
	}

	return report, err
}

// GetSyncStatus returns the sync status for a data type.
func (s *Syncer) GetSyncStatus(dataType SyncDataType) *SyncStatus {
	lastSync := s.store.GetLastSync(string(dataType))
	age := time.Since(lastSync)

	return &SyncStatus{
		DataType:     dataType,
		LastSync:     lastSync,
		IsStale:      lastSync.IsZero() || age > s.config.StaleAfter,
		StaleMinutes: int(age.Minutes()),
	}
}

// IsDataStale checks if a specific data type is stale.
func (s *Syncer) IsDataStale(dataType SyncDataType) bool {
	return s.GetSyncStatus(dataType).IsStale
}

// FormatSyncStatus returns a human-readable sync status string.
func FormatSyncStatus(status *SyncStatus) string {
	if status.LastSync.IsZero() {
		return fmt.Sprintf("%s: Never synced", status.DataType)
	}

	timeStr := status.LastSync.Format("2006-01-02 15:04:05")
	if status.IsStale {
		return fmt.Sprintf("%s: Stale (last sync: %s, %d min ago)", status.DataType, timeStr, status.StaleMinutes)
	}
	return fmt.Sprintf("%s: Fresh (last sync: %s)", status.DataType, timeStr)
}
