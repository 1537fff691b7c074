// Package history archives run results in a local SQLite database so past
// detections can be reviewed after cache entries expire.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sleepsift/sleepsift-cli/internal/pipeline"
	"github.com/sleepsift/sleepsift-cli/internal/utils"
)

// Store persists runs and their per-night scores.
type Store struct {
	db *sql.DB
}

// Run is one archived pipeline execution.
type Run struct {
	ID            string
	DeviceID      string
	DeviceName    string
	Tracker       string
	ExecutedAt    time.Time
	WindowDays    int
	Contamination float64
	OutlierCount  int
	LatestFlagged bool
}

// Night is one archived scored night.
type Night struct {
	RunID        string
	Date         string
	Score        float64
	IsOutlier    bool
	HeartRate    sql.NullFloat64
	RespRate     sql.NullFloat64
	SleepHours   sql.NullFloat64
	SleepQuality sql.NullFloat64
	TossAndTurn  sql.NullFloat64
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history database path is empty")
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Init creates the schema.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			device_name TEXT NOT NULL,
			tracker TEXT NOT NULL,
			executed_at TEXT NOT NULL,
			window_days INTEGER NOT NULL,
			contamination REAL NOT NULL,
			outlier_count INTEGER NOT NULL,
			latest_flagged INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_device ON runs(device_id, executed_at)`,
		`CREATE TABLE IF NOT EXISTS nights (
			run_id TEXT NOT NULL REFERENCES runs(id),
			date TEXT NOT NULL,
			score REAL NOT NULL,
			is_outlier INTEGER NOT NULL,
			heart_rate_avg REAL,
			respiratory_rate_avg REAL,
			sleep_duration_hours REAL,
			sleep_score REAL,
			toss_and_turn_count REAL,
			PRIMARY KEY (run_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nights_date ON nights(date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun archives one run and every scored night in a single transaction.
func (s *Store) SaveRun(ctx context.Context, trackerName, deviceID, deviceName string, res *pipeline.Result, contamination float64) error {
	frame := res.Frame
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, device_id, device_name, tracker, executed_at, window_days, contamination, outlier_count, latest_flagged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID,
		deviceID,
		deviceName,
		trackerName,
		time.Now().UTC().Format(time.RFC3339),
		len(frame.Days),
		contamination,
		len(frame.Outliers()),
		boolInt(res.Decision.LatestIsOutlier),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nights (run_id, date, score, is_outlier, heart_rate_avg, respiratory_rate_avg, sleep_duration_hours, sleep_score, toss_and_turn_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for i := range frame.Days {
		d := &frame.Days[i]
		if _, err := stmt.ExecContext(ctx,
			res.RunID,
			d.DateString(),
			d.OutlierScore,
			boolInt(d.IsOutlier),
			nullObs(d.HeartRateAvg),
			nullObs(d.RespRateAvg),
			nullObs(d.SleepDurationHours),
			nullObs(d.SleepScore),
			nullObs(d.TossAndTurnCount),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, device_name, tracker, executed_at, window_days, contamination, outlier_count, latest_flagged
		FROM runs ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var ts string
		var flagged int
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.DeviceName, &r.Tracker, &ts, &r.WindowDays, &r.Contamination, &r.OutlierCount, &flagged); err != nil {
			return nil, err
		}
		r.ExecutedAt, _ = time.Parse(time.RFC3339, ts)
		r.LatestFlagged = flagged != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutlierNights returns archived flagged nights for a device, newest first.
func (s *Store) OutlierNights(ctx context.Context, deviceID string, limit int) ([]Night, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.run_id, n.date, n.score, n.is_outlier, n.heart_rate_avg, n.respiratory_rate_avg, n.sleep_duration_hours, n.sleep_score, n.toss_and_turn_count
		FROM nights n JOIN runs r ON r.id = n.run_id
		WHERE r.device_id = ? AND n.is_outlier = 1
		ORDER BY n.date DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Night
	for rows.Next() {
		var n Night
		var flagged int
		if err := rows.Scan(&n.RunID, &n.Date, &n.Score, &flagged, &n.HeartRate, &n.RespRate, &n.SleepHours, &n.SleepQuality, &n.TossAndTurn); err != nil {
			return nil, err
		}
		n.IsOutlier = flagged != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullObs(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
