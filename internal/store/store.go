// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"cryptolens/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Listing
	SaveCryptos(ctx context.Context, cryptos []models.Crypto) error
	ListCryptos(ctx context.Context) ([]models.Crypto, error)
	SearchCryptos(ctx context.Context, query string) ([]models.Crypto, error)
	GetCrypto(ctx context.Context, id string) (*models.Crypto, error)

	// History
	SaveHistory(ctx context.Context, cryptoID string, points models.Series) (int, error)
	GetHistory(ctx context.Context, cryptoID string) (models.Series, error)
	GetHistoryFreshness(ctx context.Context, cryptoID string) (time.Time, error)
	ListHistoryIDs(ctx context.Context) ([]string, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// SyncDataType names a synced dataset in sync_status.
type SyncDataType string

const (
	SyncTypeListing SyncDataType = "listing"
)

// HistorySyncType is the sync_status key of one coin's history.
func HistorySyncType(cryptoID string) SyncDataType {
	return SyncDataType("history:" + cryptoID)
}
