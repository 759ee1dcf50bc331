package shelterboard

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// ErrStoreClosed is returned when operations are attempted on a closed
// snapshot store.
var ErrStoreClosed = errors.New("snapshot store is closed")

// Snapshot is one persisted dataset payload. Data is the uncompressed CSV;
// it is only populated by Latest, not by List.
type Snapshot struct {
	ID        int64     `json:"id"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	Data      []byte    `json:"-"`
}

// SavedView is a named chart selection users keep on the dashboard.
type SavedView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OrgID     int64     `json:"org_id"`
	Families  []string  `json:"families"`
	Variant   string    `json:"variant"`
	Smoothing string    `json:"smoothing"`
	Window    int       `json:"window"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotStore persists fetched datasets and saved views in a SQLite file.
// Dataset payloads are snappy-compressed. The store lets the dashboard come
// back up with the last good dataset when the remote source is down.
type SnapshotStore struct {
	db   *sql.DB
	keep int

	mu     sync.Mutex
	closed bool
}

// OpenSnapshotStore opens (creating if needed) the store at path, retaining
// the newest keep snapshots.
func OpenSnapshotStore(path string, keep int) (*SnapshotStore, error) {
	if path == "" {
		return nil, errors.New("snapshot: path is required")
	}
	if keep <= 0 {
		keep = 5
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open database: %w", err)
	}

	store := &SnapshotStore{db: db, keep: keep}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: initialize schema: %w", err)
	}
	return store, nil
}

func (s *SnapshotStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fetched_at INTEGER NOT NULL,
			source TEXT NOT NULL,
			checksum TEXT NOT NULL,
			size INTEGER NOT NULL,
			data BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS saved_views (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			org_id INTEGER NOT NULL,
			families TEXT NOT NULL,
			variant TEXT NOT NULL,
			smoothing TEXT NOT NULL,
			window INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_fetched ON snapshots(fetched_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SnapshotStore) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save compresses and stores a dataset payload, then prunes old snapshots.
// It returns the new snapshot's ID.
func (s *SnapshotStore) Save(data []byte, source, checksum string) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, errors.New("snapshot: empty payload")
	}

	compressed := snappy.Encode(nil, data)
	res, err := s.db.Exec(
		`INSERT INTO snapshots (fetched_at, source, checksum, size, data) VALUES (?, ?, ?, ?, ?)`,
		time.Now().Unix(), source, checksum, int64(len(data)), compressed,
	)
	if err != nil {
		return 0, fmt.Errorf("snapshot: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot: last insert id: %w", err)
	}
	if err := s.prune(); err != nil {
		return id, err
	}
	return id, nil
}

func (s *SnapshotStore) prune() error {
	_, err := s.db.Exec(
		`DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`,
		s.keep,
	)
	if err != nil {
		return fmt.Errorf("snapshot: prune: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot with its decompressed payload, or
// ErrSnapshotNotFound when the store is empty.
func (s *SnapshotStore) Latest() (*Snapshot, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(
		`SELECT id, fetched_at, source, checksum, size, data FROM snapshots ORDER BY id DESC LIMIT 1`,
	)
	var (
		snap       Snapshot
		fetchedAt  int64
		compressed []byte
	)
	err := row.Scan(&snap.ID, &fetchedAt, &snap.Source, &snap.Checksum, &snap.Size, &compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: query latest: %w", err)
	}

	snap.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	snap.Data, err = snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", err)
	}
	return &snap, nil
}

// List returns snapshot metadata, newest first, without payloads.
func (s *SnapshotStore) List(limit int) ([]Snapshot, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, fetched_at, source, checksum, size FROM snapshots ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			fetchedAt int64
		)
		if err := rows.Scan(&snap.ID, &fetchedAt, &snap.Source, &snap.Checksum, &snap.Size); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		snap.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SaveView inserts or updates a named view and returns its ID.
func (s *SnapshotStore) SaveView(v SavedView) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if v.Name == "" {
		return 0, errors.New("snapshot: view name is required")
	}

	families, err := json.Marshal(v.Families)
	if err != nil {
		return 0, fmt.Errorf("snapshot: encode families: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO saved_views (name, org_id, families, variant, smoothing, window, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   org_id = excluded.org_id,
		   families = excluded.families,
		   variant = excluded.variant,
		   smoothing = excluded.smoothing,
		   window = excluded.window`,
		v.Name, v.OrgID, string(families), v.Variant, v.Smoothing, v.Window, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("snapshot: save view: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		return id, nil
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM saved_views WHERE name = ?`, v.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("snapshot: resolve view id: %w", err)
	}
	return id, nil
}

// Views returns all saved views, newest first.
func (s *SnapshotStore) Views() ([]SavedView, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, name, org_id, families, variant, smoothing, window, created_at
		 FROM saved_views ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query views: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SavedView
	for rows.Next() {
		var (
			v         SavedView
			families  string
			createdAt int64
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.OrgID, &families, &v.Variant, &v.Smoothing, &v.Window, &createdAt); err != nil {
			return nil, fmt.Errorf("snapshot: scan view: %w", err)
		}
		if err := json.Unmarshal([]byte(families), &v.Families); err != nil {
			return nil, fmt.Errorf("snapshot: decode families: %w", err)
		}
		v.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteView removes a saved view by ID. Unknown IDs are not an error.
func (s *SnapshotStore) DeleteView(id int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM saved_views WHERE id = ?`, id); err != nil {
		return fmt.Errorf("snapshot: delete view: %w", err)
	}
	return nil
}

// Close closes the underlying database. Further calls return ErrStoreClosed.
func (s *SnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
