package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	storeDBName = "focusguard.db"
)

// EncryptedStore implements domain.KeyValueStore and domain.SessionBlockList
// using a SQLCipher encrypted SQLite database.
//
// The session area and the session-blocked list are keyed by browser session
// id, so browsers sharing a data directory never see each other's session
// state. An empty session id (CLI access) reads session-blocked URLs across
// every recorded session and writes nothing session-scoped.
type EncryptedStore struct {
	db        *sql.DB
	dbPath    string
	sessionID string
}

// NewEncryptedStore opens (or creates) the encrypted store in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte, sessionID string) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// A wrong key only surfaces on first query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{
		db:        db,
		dbPath:    dbPath,
		sessionID: sessionID,
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.bindSession(sessionID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bind browser session: %w", err)
	}

	return s, nil
}

// createTables creates the schema if it doesn't exist. A session_blocked
// table from before session scoping is dropped; its rows belong to no
// known session.
func (s *EncryptedStore) createTables() error {
	var scoped int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM pragma_table_info('session_blocked') WHERE name = 'session_id'`,
	).Scan(&scoped)
	if err != nil {
		return err
	}
	if scoped == 0 {
		if _, err := s.db.Exec(`DROP TABLE IF EXISTS session_blocked`); err != nil {
			return err
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		area TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (area, key)
	);

	CREATE TABLE IF NOT EXISTS session_blocked (
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		blocked_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, url)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL
	);

	DELETE FROM kv WHERE area = 'session';
	`
	_, err = s.db.Exec(schema)
	return err
}

// bindSession records sessionID as a known browser session.
func (s *EncryptedStore) bindSession(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, started_at) VALUES (?, ?)`,
		sessionID, time.Now().Unix())
	return err
}

// PruneSessions drops the state of every other recorded session for which
// alive reports false. Returns the number of sessions removed.
func (s *EncryptedStore) PruneSessions(ctx context.Context, alive func(id string) bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE id != ?`, s.sessionID)
	if err != nil {
		return 0, err
	}
	var dead []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if !alive(id) {
			dead = append(dead, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(dead) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, id := range dead {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_blocked WHERE session_id = ?`, id); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE area = ?`, sessionArea(id)); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(dead), nil
}

func sessionArea(sessionID string) string {
	return string(domain.AreaSession) + ":" + sessionID
}

// areaKey maps an area to its kv.area value; the session area is per session.
func (s *EncryptedStore) areaKey(area domain.Area) string {
	if area == domain.AreaSession {
		return sessionArea(s.sessionID)
	}
	return string(area)
}

// --- domain.KeyValueStore implementation ---

// Get returns stored JSON for the keys that exist.
func (s *EncryptedStore) Get(ctx context.Context, area domain.Area, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(keys)+1)
	args = append(args, s.areaKey(area))
	for _, k := range keys {
		args = append(args, k)
	}
	query := `SELECT key, value FROM kv WHERE area = ? AND key IN (?` +
		strings.Repeat(`, ?`, len(keys)-1) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = json.RawMessage(v)
	}
	return out, rows.Err()
}

// Set writes all values in one transaction.
func (s *EncryptedStore) Set(ctx context.Context, area domain.Area, values map[string]any) error {
	encoded := make(map[string]string, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", k, err)
		}
		encoded[k] = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for k, v := range encoded {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO kv (area, key, value, updated_at) VALUES (?, ?, ?, ?)`,
			s.areaKey(area), k, v, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes keys from area.
func (s *EncryptedStore) Delete(ctx context.Context, area domain.Area, keys ...string) error {
	for _, k := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE area = ? AND key = ?`, s.areaKey(area), k); err != nil {
			return err
		}
	}
	return nil
}

// --- domain.SessionBlockList implementation ---

// Add records url for this session with a single upsert.
func (s *EncryptedStore) Add(ctx context.Context, url string) error {
	if s.sessionID == "" {
		return fmt.Errorf("session block requires a browser session")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_blocked (session_id, url, blocked_at) VALUES (?, ?, ?)`,
		s.sessionID, url, time.Now().Unix())
	return err
}

// Has reports whether url is session-blocked.
func (s *EncryptedStore) Has(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM session_blocked WHERE url = ? AND (? = '' OR session_id = ?)`,
		url, s.sessionID, s.sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns session-blocked URLs in the order they were blocked.
func (s *EncryptedStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url FROM session_blocked WHERE ? = '' OR session_id = ?
		 GROUP BY url ORDER BY MIN(blocked_at), MIN(rowid)`,
		s.sessionID, s.sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// SessionID returns the browser session the store is bound to.
func (s *EncryptedStore) SessionID() string {
	return s.sessionID
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedStore implements both interfaces.
var _ domain.KeyValueStore = (*EncryptedStore)(nil)
var _ domain.SessionBlockList = (*EncryptedStore)(nil)
