package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "ledger.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000
	defaultMaxBackups    = 20
)

var errNoBackups = errors.New("no ledger backups available")

// SQLiteStore keeps snapshots in a SQLite database file. When the file
// cannot be opened it is restored from the newest backup.
type SQLiteStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string
}

type backupInfo struct {
	path      string
	timestamp int64
}

// NewSQLiteStore opens or creates the database at filePath.
func NewSQLiteStore(filePath string) (*SQLiteStore, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &SQLiteStore{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	if err := s.tryOpenOrRecover(); err != nil {
		return nil, err
	}

	if err := s.ensureSchema(); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDB()
}

func (s *SQLiteStore) tryOpenOrRecover() error {
	if err := s.openDB(); err != nil {
		if recErr := s.recoverDatabase(err); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (s *SQLiteStore) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(s.file)))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) recoverDatabase(openErr error) error {
	if err := s.restoreLatestBackup(); err != nil {
		if errors.Is(err, errNoBackups) {
			if cleanErr := s.resetDatabaseFiles(); cleanErr != nil {
				return fmt.Errorf("reset database after %v: %w", openErr, cleanErr)
			}
			if err := s.openDB(); err != nil {
				return fmt.Errorf("create fresh database after %v: %w", openErr, err)
			}
			return nil
		}
		return fmt.Errorf("restore database after %v: %w", openErr, err)
	}
	return nil
}

func (s *SQLiteStore) closeDB() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) resetDatabaseFiles() error {
	_ = s.closeDB()

	var firstErr error
	for _, path := range []string{s.file, s.file + "-wal", s.file + "-shm"} {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", filepath.Base(path), err)
			}
		}
	}
	return firstErr
}

func (s *SQLiteStore) restoreLatestBackup() error {
	prefix, ext := s.backupName()
	backups, err := listBackups(s.backupDir, prefix, ext)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return errNoBackups
	}

	latest := backups[len(backups)-1]
	if err := s.resetDatabaseFiles(); err != nil {
		return err
	}
	if err := copyFile(latest.path, s.file); err != nil {
		return fmt.Errorf("copy backup %s: %w", filepath.Base(latest.path), err)
	}
	return s.openDB()
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		height INTEGER PRIMARY KEY,
		app_hash BLOB NOT NULL,
		data BLOB NOT NULL,
		saved_at TEXT
	)`)
	if err != nil {
		return fmt.Errorf("create snapshots table: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	return nil
}

// Save writes rec, replacing any snapshot at the same height.
func (s *SQLiteStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO snapshots (height, app_hash, data, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(height) DO UPDATE SET
			app_hash = excluded.app_hash,
			data = excluded.data,
			saved_at = excluded.saved_at`,
		rec.Height, rec.AppHash, rec.Data, rec.SavedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save snapshot %d: %w", rec.Height, err)
	}
	return nil
}

// Latest returns the snapshot with the greatest height.
func (s *SQLiteStore) Latest() (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan(s.db.QueryRow(`SELECT height, app_hash, data, saved_at FROM snapshots
		ORDER BY height DESC LIMIT 1`))
}

// Load returns the snapshot at height.
func (s *SQLiteStore) Load(height int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan(s.db.QueryRow(`SELECT height, app_hash, data, saved_at FROM snapshots
		WHERE height = ?`, height))
}

func (s *SQLiteStore) scan(row *sql.Row) (Record, error) {
	var (
		rec     Record
		savedAt sql.NullString
	)
	if err := row.Scan(&rec.Height, &rec.AppHash, &rec.Data, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("read snapshot: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, savedAt.String); err == nil {
		rec.SavedAt = ts
	}
	return rec, nil
}

// Heights lists stored heights in ascending order.
func (s *SQLiteStore) Heights() ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT height FROM snapshots ORDER BY height`)
	if err != nil {
		return nil, fmt.Errorf("list heights: %w", err)
	}
	defer rows.Close()

	var heights []int64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan height: %w", err)
		}
		heights = append(heights, h)
	}
	return heights, rows.Err()
}

// Prune drops all but the newest keep snapshots.
func (s *SQLiteStore) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM snapshots WHERE height NOT IN (
		SELECT height FROM snapshots ORDER BY height DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func (s *SQLiteStore) backupName() (prefix, ext string) {
	base := filepath.Base(s.file)
	ext = filepath.Ext(base)
	prefix = strings.TrimSuffix(base, ext)
	if prefix == "" {
		prefix = base
	}
	return prefix, ext
}

// BackupCurrent writes a copy of the database to a timestamped file in the
// backups directory and prunes old backups beyond maxBackups. It returns an
// empty path when there is no database file yet.
func (s *SQLiteStore) BackupCurrent(maxBackups int) (string, error) {
	snapshot, err := s.ExportDatabase()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backup directory: %w", err)
	}

	prefix, ext := s.backupName()
	backupPath := uniqueBackupPath(s.backupDir, prefix, ext)
	if err := os.WriteFile(backupPath, snapshot, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	pruneBackups(s.backupDir, prefix, ext, maxBackups)
	return backupPath, nil
}

// Backups lists backup files oldest first.
func (s *SQLiteStore) Backups() ([]string, error) {
	prefix, ext := s.backupName()
	backups, err := listBackups(s.backupDir, prefix, ext)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(backups))
	for _, b := range backups {
		paths = append(paths, b.path)
	}
	return paths, nil
}

// ExportDatabase returns a consistent copy of the whole database file.
func (s *SQLiteStore) ExportDatabase() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.file); errors.Is(err, os.ErrNotExist) {
		return nil, os.ErrNotExist
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.file), "ledger-export-*.db")
	if err != nil {
		return nil, fmt.Errorf("create temp export file: %w", err)
	}
	tempPath := tempFile.Name()
	tempFile.Close()

	escaped := strings.ReplaceAll(tempPath, "'", "''")
	if _, err := s.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("vacuum into temp file: %w", err)
	}

	data, err := os.ReadFile(tempPath)
	os.Remove(tempPath)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}
	return data, nil
}

// ImportDatabase replaces the database with the provided SQLite file bytes.
// The current database is moved into the backups directory; its path is
// returned.
func (s *SQLiteStore) ImportDatabase(data []byte, maxBackups int) (string, error) {
	if len(data) == 0 {
		return "", errors.New("database image is empty")
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare backup directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "ledger-import-*.db")
	if err != nil {
		return "", fmt.Errorf("create temp import file: %w", err)
	}
	tempPath := tempFile.Name()
	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("write temp import file: %w", err)
	}
	tempFile.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.closeDB()

	prefix, ext := s.backupName()
	var backupPath string
	if _, err := os.Stat(s.file); err == nil {
		backupPath = uniqueBackupPath(s.backupDir, prefix, ext)
		if err := os.Rename(s.file, backupPath); err != nil {
			_ = s.openDB()
			os.Remove(tempPath)
			return "", fmt.Errorf("rename existing db: %w", err)
		}
		for _, path := range []string{s.file + "-wal", s.file + "-shm"} {
			_ = os.Remove(path)
		}
	}

	if err := os.Rename(tempPath, s.file); err != nil {
		if backupPath != "" {
			_ = os.Rename(backupPath, s.file)
		}
		os.Remove(tempPath)
		_ = s.openDB()
		return "", fmt.Errorf("activate imported db: %w", err)
	}

	if err := s.openDB(); err != nil {
		if backupPath != "" {
			_ = os.Rename(backupPath, s.file)
			_ = s.openDB()
		}
		return "", fmt.Errorf("reopen db after import: %w", err)
	}
	if err := s.ensureSchema(); err != nil {
		return backupPath, err
	}

	pruneBackups(s.backupDir, prefix, ext, maxBackups)
	return backupPath, nil
}

func listBackups(dir, prefix, ext string) ([]backupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []backupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") || (ext != "" && !strings.HasSuffix(name, ext)) {
			continue
		}

		tsPart := strings.TrimPrefix(strings.TrimSuffix(name, ext), prefix+"-")
		ts, parseErr := strconv.ParseInt(tsPart, 10, 64)
		if parseErr != nil {
			info, statErr := entry.Info()
			if statErr != nil {
				continue
			}
			ts = info.ModTime().Unix()
		}
		backups = append(backups, backupInfo{path: filepath.Join(dir, name), timestamp: ts})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].timestamp == backups[j].timestamp {
			return backups[i].path < backups[j].path
		}
		return backups[i].timestamp < backups[j].timestamp
	})
	return backups, nil
}

func pruneBackups(dir, prefix, ext string, maxBackups int) {
	if maxBackups <= 0 {
		return
	}
	backups, err := listBackups(dir, prefix, ext)
	if err != nil || len(backups) <= maxBackups {
		return
	}
	for i := 0; i < len(backups)-maxBackups; i++ {
		_ = os.Remove(backups[i].path)
	}
}

func uniqueBackupPath(dir, prefix, ext string) string {
	timestamp := time.Now().Unix()
	for {
		path := filepath.Join(dir, fmt.Sprintf("%s-%d%s", prefix, timestamp, ext))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		timestamp++
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
