// Package storage provides SQLite-backed persistence for sessions, drift
// records, and alerts.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rinkside/standwatch/internal/models"
	_ "modernc.org/sqlite"
)

// Recorder is the persistence contract the session orchestrator writes to.
// Recording failures are logged by callers, never fatal to a session.
type Recorder interface {
	StartSession(sessionID string, game *models.Game, scenario string) error
	RecordDrift(sessionID string, rec models.DriftRecord) error
	RecordAlert(alert models.Alert) error
	FinishSession(sessionID string, state string, summary models.Summary) error
	Close() error
}

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/standwatch/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "standwatch", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			game_id      TEXT NOT NULL,
			opponent     TEXT,
			game_date    TEXT,
			attendance   INTEGER,
			archetype    TEXT,
			scenario     TEXT NOT NULL,
			state        TEXT NOT NULL DEFAULT 'running',
			summary      TEXT,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS drift_records (
			session_id       TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			stand            TEXT NOT NULL,
			window_index     INTEGER NOT NULL,
			forecast_qty     REAL NOT NULL,
			actual_qty       REAL NOT NULL,
			drift_pct        REAL NOT NULL,
			volume_drift     REAL NOT NULL,
			mix_drift        REAL NOT NULL,
			timing_drift     REAL NOT NULL,
			severity         REAL NOT NULL,
			cumulative_drift REAL NOT NULL,
			status           TEXT NOT NULL,
			trend            TEXT NOT NULL,
			PRIMARY KEY (session_id, stand, window_index)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			stand       TEXT NOT NULL,
			window_index INTEGER NOT NULL,
			cause       TEXT NOT NULL,
			confidence  REAL NOT NULL,
			alert_text  TEXT NOT NULL,
			actions     TEXT NOT NULL DEFAULT '[]',
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drift_session_window ON drift_records(session_id, window_index)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartSession inserts the session row at start.
func (s *Storage) StartSession(sessionID string, game *models.Game, scenario string) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, game_id, opponent, game_date, attendance, archetype, scenario, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'running', ?)`,
		sessionID, game.ID, game.Opponent, game.Date.Format("2006-01-02"),
		game.Attendance, string(game.Archetype), scenario, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// RecordDrift appends one drift record.
func (s *Storage) RecordDrift(sessionID string, rec models.DriftRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO drift_records (session_id, stand, window_index, forecast_qty, actual_qty,
			drift_pct, volume_drift, mix_drift, timing_drift, severity,
			cumulative_drift, status, trend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.Stand, rec.Window, rec.ForecastQty, rec.ActualQty,
		rec.DriftPct, rec.VolumeDrift, rec.MixDrift, rec.TimingDrift, rec.Severity,
		rec.CumulativeDrift, string(rec.Status), string(rec.Trend),
	)
	if err != nil {
		return fmt.Errorf("failed to insert drift record: %w", err)
	}
	return nil
}

// RecordAlert persists one alert.
func (s *Storage) RecordAlert(alert models.Alert) error {
	actions, err := json.Marshal(alert.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO alerts (id, session_id, stand, window_index, cause, confidence, alert_text, actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.SessionID, alert.Stand, alert.Window, string(alert.Cause),
		alert.Confidence, alert.AlertText, string(actions), alert.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// FinishSession records the terminal state and summary.
func (s *Storage) FinishSession(sessionID string, state string, summary models.Summary) error {
	blob, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = s.db.Exec(`
		UPDATE sessions SET state = ?, summary = ?, finished_at = ? WHERE id = ?`,
		state, string(blob), time.Now().Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return nil
}

// SessionSummary loads the stored summary for a finished session.
func (s *Storage) SessionSummary(sessionID string) (models.Summary, string, error) {
	var state string
	var blob sql.NullString
	err := s.db.QueryRow(`SELECT state, summary FROM sessions WHERE id = ?`, sessionID).Scan(&state, &blob)
	if err != nil {
		return models.Summary{}, "", fmt.Errorf("failed to load session: %w", err)
	}
	var summary models.Summary
	if blob.Valid && blob.String != "" {
		if err := json.Unmarshal([]byte(blob.String), &summary); err != nil {
			return models.Summary{}, "", fmt.Errorf("failed to parse summary: %w", err)
		}
	}
	return summary, state, nil
}

// DriftHistory loads a stand's full drift sequence for a session, in window
// order.
func (s *Storage) DriftHistory(sessionID, stand string) ([]models.DriftRecord, error) {
	rows, err := s.db.Query(`
		SELECT stand, window_index, forecast_qty, actual_qty, drift_pct, volume_drift,
			mix_drift, timing_drift, severity, cumulative_drift, status, trend
		FROM drift_records WHERE session_id = ? AND stand = ? ORDER BY window_index`,
		sessionID, stand)
	if err != nil {
		return nil, fmt.Errorf("failed to query drift records: %w", err)
	}
	defer rows.Close()

	var records []models.DriftRecord
	for rows.Next() {
		var rec models.DriftRecord
		var status, trend string
		if err := rows.Scan(&rec.Stand, &rec.Window, &rec.ForecastQty, &rec.ActualQty,
			&rec.DriftPct, &rec.VolumeDrift, &rec.MixDrift, &rec.TimingDrift,
			&rec.Severity, &rec.CumulativeDrift, &status, &trend); err != nil {
			return nil, fmt.Errorf("failed to scan drift record: %w", err)
		}
		rec.Status = models.Status(status)
		rec.Trend = models.Trend(trend)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Alerts loads a session's alerts in creation order.
func (s *Storage) Alerts(sessionID string) ([]models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, stand, window_index, cause, confidence, alert_text, actions, created_at
		FROM alerts WHERE session_id = ? ORDER BY created_at, window_index`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var cause, actions string
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Stand, &a.Window, &cause,
			&a.Confidence, &a.AlertText, &actions, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Cause = models.Cause(cause)
		a.CreatedAt = time.Unix(createdAt, 0)
		if err := json.Unmarshal([]byte(actions), &a.Actions); err != nil {
			return nil, fmt.Errorf("failed to parse alert actions: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Noop discards everything. Used when persistence is disabled.
type Noop struct{}

func (Noop) StartSession(string, *models.Game, string) error    { return nil }
func (Noop) RecordDrift(string, models.DriftRecord) error       { return nil }
func (Noop) RecordAlert(models.Alert) error                     { return nil }
func (Noop) FinishSession(string, string, models.Summary) error { return nil }
func (Noop) Close() error                                       { return nil }
