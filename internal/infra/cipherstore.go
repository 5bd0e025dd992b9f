package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/quietloop/driftd/internal/domain"
)


const snapshotDBName = "snapshots.db"

// CipherStore implements domain.SnapshotStore on a SQLCipher encrypted
// SQLite database, for installs that keep behavioral history encrypted
// at rest. The key is the SQLCipher passphrase via PRAGMA key.
type CipherStore struct {
	db     *sql.DB
	dbPath string
}

// NewCipherStore opens (or creates) the encrypted snapshot database.
func NewCipherStore(dataDir string, key []byte) (*CipherStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, snapshotDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// Verify encryption works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &CipherStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *CipherStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		active_ms INTEGER NOT NULL,
		stage INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the snapshot for key, or (nil, nil) if absent.
func (s *CipherStore) Get(ctx context.Context, key string) (*domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT active_ms, stage, updated_at FROM snapshots WHERE key = ?`, key)

	var snap domain.Snapshot
	var stage int
	var updatedAt int64
	if err := row.Scan(&snap.ActiveMs, &stage, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	snap.Stage = domain.Stage(stage)
	snap.UpdatedAt = time.Unix(updatedAt, 0)
	return &snap, nil
}

// Set upserts the snapshot for key.
func (s *CipherStore) Set(ctx context.Context, key string, snap domain.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (key, active_ms, stage, updated_at)
		VALUES (?, ?, ?, ?)`,
		key, snap.ActiveMs, int(snap.Stage), snap.UpdatedAt.Unix(),
	)
	return err
}

// PruneBefore deletes snapshots last updated before the cutoff, keeping
// the database from accumulating stale site-days forever.
func (s *CipherStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *CipherStore) Close() error {
	return s.db.Close()
}

// Ensure CipherStore implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*CipherStore)(nil)
