package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petems/tapmeter/internal/app"
	"github.com/petems/tapmeter/internal/level"
)

// CalibrationRecord is a stored recalibration.
type CalibrationRecord struct {
	At time.Time `json:"at"`
	level.Calibration
}

// SQLiteStore keeps a history of readings and calibrations. It is a log
// only; nothing is read back into the tracker.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "tapmeter.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			amplitude REAL NOT NULL,
			level INTEGER NOT NULL,
			intervals INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create readings table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calibrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			min REAL NOT NULL,
			max REAL NOT NULL,
			boundaries TEXT NOT NULL,
			bootstrap INTEGER NOT NULL DEFAULT 0
		);
	`); err != nil {
		return fmt.Errorf("create calibrations table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_readings_at ON readings(at)"); err != nil {
		return fmt.Errorf("create readings index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) AppendReading(r app.Reading) error {
	_, err := s.db.Exec(
		`INSERT INTO readings(at, amplitude, level, intervals) VALUES(?, ?, ?, ?)`,
		r.At.UTC().Format(time.RFC3339Nano),
		r.Amplitude,
		r.Level,
		r.Intervals,
	)
	if err != nil {
		return fmt.Errorf("append reading: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendCalibration(at time.Time, c level.Calibration) error {
	boundaries, err := json.Marshal(c.Boundaries)
	if err != nil {
		return fmt.Errorf("encode boundaries: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO calibrations(at, min, max, boundaries, bootstrap) VALUES(?, ?, ?, ?, ?)`,
		at.UTC().Format(time.RFC3339Nano),
		c.Min,
		c.Max,
		string(boundaries),
		c.Bootstrap,
	)
	if err != nil {
		return fmt.Errorf("append calibration: %w", err)
	}
	return nil
}

// RecentReadings returns up to limit of the newest readings, oldest first.
func (s *SQLiteStore) RecentReadings(limit int) ([]app.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT at, amplitude, level, intervals FROM (
			SELECT id, at, amplitude, level, intervals FROM readings ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var readings []app.Reading
	for rows.Next() {
		var (
			r  app.Reading
			at string
		)
		if err := rows.Scan(&at, &r.Amplitude, &r.Level, &r.Intervals); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse reading time %q: %w", at, err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings rows: %w", err)
	}

	return readings, nil
}

// LatestCalibration returns sql.ErrNoRows when nothing has been recorded.
func (s *SQLiteStore) LatestCalibration() (CalibrationRecord, error) {
	row := s.db.QueryRow(
		`SELECT at, min, max, boundaries, bootstrap FROM calibrations ORDER BY id DESC LIMIT 1`,
	)

	var (
		rec        CalibrationRecord
		at         string
		boundaries string
	)
	if err := row.Scan(&at, &rec.Min, &rec.Max, &boundaries, &rec.Bootstrap); err != nil {
		return CalibrationRecord{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return CalibrationRecord{}, fmt.Errorf("parse calibration time %q: %w", at, err)
	}
	rec.At = t

	if err := json.Unmarshal([]byte(boundaries), &rec.Boundaries); err != nil {
		return CalibrationRecord{}, fmt.Errorf("decode boundaries: %w", err)
	}

	return rec, nil
}
