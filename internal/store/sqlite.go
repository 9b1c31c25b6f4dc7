// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cryptolens/internal/analysis/series"
	apperrors "cryptolens/internal/errors"
	"cryptolens/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %v", apperrors.ErrDatabaseError, err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", apperrors.ErrDatabaseError, err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", apperrors.ErrDatabaseError, err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Listing snapshot, in market-cap order
	CREATE TABLE IF NOT EXISTS cryptos (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		market_cap_rank INTEGER,
		current_price REAL,
		market_cap REAL,
		total_volume REAL,
		price_change_percentage_24h REAL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Daily history rows; numeric cells keep their source text
	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crypto_id TEXT NOT NULL,
		date TEXT NOT NULL,
		open TEXT,
		high TEXT,
		low TEXT,
		close TEXT,
		volume TEXT,
		price TEXT,
		source TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(crypto_id, date)
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cryptos_position ON cryptos(position);
	CREATE INDEX IF NOT EXISTS idx_history_crypto ON price_history(crypto_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Listing Methods
// ============================================================================

// SaveCryptos replaces the stored listing.
func (s *SQLiteStore) SaveCryptos(ctx context.Context, cryptos []models.Crypto) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cryptos`); err != nil {
		return fmt.Errorf("failed to clear listing: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO cryptos (id, position, symbol, name, market_cap_rank, current_price, market_cap, total_volume, price_change_percentage_24h, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i, c := range cryptos {
		if c.ID == "" {
			return apperrors.NewValidationError("id", c.Name, "crypto id is required")
		}
		_, err := stmt.ExecContext(ctx, c.ID, i, c.Symbol, c.Name,
			nullInt(c.MarketCapRank), nullFloat(c.CurrentPrice), nullFloat(c.MarketCap),
			nullFloat(c.TotalVolume), nullFloat(c.PriceChangePercentage24h), now)
		if err != nil {
			return fmt.Errorf("failed to insert crypto %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const cryptoColumns = `id, symbol, name, market_cap_rank, current_price, market_cap, total_volume, price_change_percentage_24h`

// ListCryptos returns the stored listing in market-cap order.
func (s *SQLiteStore) ListCryptos(ctx context.Context) ([]models.Crypto, error) {
	return s.queryCryptos(ctx, `SELECT `+cryptoColumns+` FROM cryptos ORDER BY position ASC`)
}

// SearchCryptos returns coins whose name or symbol contains query,
// case-insensitively. An empty query matches nothing.
func (s *SQLiteStore) SearchCryptos(ctx context.Context, query string) ([]models.Crypto, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.Crypto{}, nil
	}
	return s.queryCryptos(ctx, `
		SELECT `+cryptoColumns+` FROM cryptos
		WHERE instr(lower(name), ?) > 0 OR instr(lower(symbol), ?) > 0
		ORDER BY position ASC
	`, q, q)
}

// GetCrypto returns one coin by id.
func (s *SQLiteStore) GetCrypto(ctx context.Context, id string) (*models.Crypto, error) {
	cryptos, err := s.queryCryptos(ctx, `SELECT `+cryptoColumns+` FROM cryptos WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(cryptos) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCryptoNotFound, id)
	}
	return &cryptos[0], nil
}

func (s *SQLiteStore) queryCryptos(ctx context.Context, query string, args ...interface{}) ([]models.Crypto, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cryptos: %w", err)
	}
	defer rows.Close()

	cryptos := []models.Crypto{}
	for rows.Next() {
		var (
			c                           models.Crypto
			rank                        sql.NullInt64
			price, mcap, volume, change sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Name, &rank, &price, &mcap, &volume, &change); err != nil {
			return nil, fmt.Errorf("failed to scan crypto: %w", err)
		}
		if rank.Valid {
			r := int(rank.Int64)
			c.MarketCapRank = &r
		}
		c.CurrentPrice = floatPtr(price)
		c.MarketCap = floatPtr(mcap)
		c.TotalVolume = floatPtr(volume)
		c.PriceChangePercentage24h = floatPtr(change)
		cryptos = append(cryptos, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cryptos: %w", err)
	}
	return cryptos, nil
}

// ============================================================================
// History Methods
// ============================================================================

// SaveHistory stores history rows and returns how many were new. Rows whose
// date is already stored are skipped, so the first stored row wins.
func (s *SQLiteStore) SaveHistory(ctx context.Context, cryptoID string, points models.Series) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO price_history (crypto_id, date, open, high, low, close, volume, price, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range points {
		if p.Date == "" {
			return 0, apperrors.NewValidationError("date", p.Date, "history row without date")
		}
		res, err := stmt.ExecContext(ctx, cryptoID, string(p.Date),
			nullField(p.Open), nullField(p.High), nullField(p.Low), nullField(p.Close),
			nullField(p.Volume), nullField(p.Price), p.Source)
		if err != nil {
			return 0, fmt.Errorf("failed to insert history row: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// GetHistory returns the stored history of a coin in chronological order.
// A coin without rows yields an error wrapping ErrDataNotFound.
func (s *SQLiteStore) GetHistory(ctx context.Context, cryptoID string) (models.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume, price, source
		FROM price_history
		WHERE crypto_id = ?
		ORDER BY id ASC
	`, cryptoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var points models.Series
	for rows.Next() {
		var (
			p                                   models.PricePoint
			date                                string
			open, high, low, cls, volume, price sql.NullString
			source                              sql.NullString
		)
		if err := rows.Scan(&date, &open, &high, &low, &cls, &volume, &price, &source); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		p.Date = models.Label(date)
		p.Open = fieldOf(open)
		p.High = fieldOf(high)
		p.Low = fieldOf(low)
		p.Close = fieldOf(cls)
		p.Volume = fieldOf(volume)
		p.Price = fieldOf(price)
		p.Source = source.String
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	if len(points) == 0 {
		return nil, apperrors.NewDataError("history", cryptoID, "no historical data", apperrors.ErrDataNotFound)
	}

	// Rows arrive in insertion order; imports may add older dates later.
	series.SortByDate(points)
	return points, nil
}

// GetHistoryFreshness returns the latest dated history row, or the zero time
// when the coin has none. Ordinal labels carry no date and are skipped.
func (s *SQLiteStore) GetHistoryFreshness(ctx context.Context, cryptoID string) (time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM price_history WHERE crypto_id = ?`, cryptoID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get history freshness: %w", err)
	}
	defer rows.Close()

	var latest time.Time
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return time.Time{}, fmt.Errorf("failed to scan history date: %w", err)
		}
		if t, ok := models.Label(date).Time(); ok && t.After(latest) {
			latest = t
		}
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, fmt.Errorf("error iterating history dates: %w", err)
	}
	return latest, nil
}

// ListHistoryIDs returns the ids of coins with stored history.
func (s *SQLiteStore) ListHistoryIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT crypto_id FROM price_history ORDER BY crypto_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan history id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullField(f models.Field) interface{} {
	if !f.IsSet() {
		return nil
	}
	return f.String()
}

func fieldOf(v sql.NullString) models.Field {
	if !v.Valid {
		return models.Field{}
	}
	return models.ParseField(v.String)
}
