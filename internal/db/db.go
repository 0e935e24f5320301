// Package db stores completed driving sessions and their events in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/drivesense/internal/session"
)

// ErrNotFound reports a lookup or delete for a session id that does not
// exist.
var ErrNotFound = errors.New("db: session not found")

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the SQLite database at path and
// brings its schema up to date.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Cascading deletes from sessions to their events need this on.
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// SessionRecord is the stored form of a session. Times are epoch
// milliseconds; EndTime is null for a session saved while still active.
type SessionRecord struct {
	ID             int64         `json:"id"`
	StartTime      int64         `json:"startTime"`
	EndTime        *int64        `json:"endTime"`
	TotalReadings  int           `json:"totalReadings"`
	TotalMagnitude float64       `json:"totalMagnitude"`
	Events         []EventRecord `json:"events"`
	Score          int           `json:"score"`
}

// EventRecord is the stored form of one driving event.
type EventRecord struct {
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
	Magnitude float64 `json:"magnitude"`
}

// eventTypeNames is the stored/wire name for each event type. Both
// directions of the conversion go through this table, so a new
// session.EventType must be given a name here before it can be saved or
// loaded.
var eventTypeNames = map[session.EventType]string{
	session.HardAcceleration: "hardAcceleration",
	session.HardBraking:      "hardBraking",
	session.SharpTurn:        "sharpTurn",
}

func eventTypeName(t session.EventType) (string, error) {
	name, ok := eventTypeNames[t]
	if !ok {
		return "", fmt.Errorf("db: unknown event type %q", t)
	}
	return name, nil
}

func eventTypeFromName(name string) (session.EventType, error) {
	for t, n := range eventTypeNames {
		if n == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("db: unknown event type name %q", name)
}

// NewSessionRecord converts a session into its stored form. The score is
// computed here, at save time. An event with an unmapped type is an error.
func NewSessionRecord(s *session.Session) (SessionRecord, error) {
	rec := SessionRecord{
		ID:             s.ID,
		StartTime:      s.StartTime.UnixMilli(),
		TotalReadings:  s.TotalReadings,
		TotalMagnitude: s.TotalMagnitude,
		Score:          s.Score(),
	}
	if s.EndTime != nil {
		end := s.EndTime.UnixMilli()
		rec.EndTime = &end
	}
	for _, e := range s.Events {
		name, err := eventTypeName(e.Type)
		if err != nil {
			return SessionRecord{}, err
		}
		rec.Events = append(rec.Events, EventRecord{
			Type:      name,
			Timestamp: e.Timestamp.UnixMilli(),
			Magnitude: e.Magnitude,
		})
	}
	return rec, nil
}

// Session converts a stored record back into the domain model. A record
// carrying an unknown event type name is rejected.
func (rec SessionRecord) Session() (*session.Session, error) {
	s := &session.Session{
		ID:             rec.ID,
		StartTime:      time.UnixMilli(rec.StartTime),
		TotalReadings:  rec.TotalReadings,
		TotalMagnitude: rec.TotalMagnitude,
	}
	if rec.EndTime != nil {
		end := time.UnixMilli(*rec.EndTime)
		s.EndTime = &end
	}
	for _, e := range rec.Events {
		typ, err := eventTypeFromName(e.Type)
		if err != nil {
			return nil, err
		}
		s.Events = append(s.Events, session.Event{
			Type:      typ,
			Timestamp: time.UnixMilli(e.Timestamp),
			Magnitude: e.Magnitude,
		})
	}
	return s, nil
}

// SaveSession stores a completed session with its events in one
// transaction and returns the assigned id. Implements session.Saver.
func (db *DB) SaveSession(ctx context.Context, s *session.Session) (int64, error) {
	rec, err := NewSessionRecord(s)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (start_time, end_time, total_readings, total_magnitude, score)
		VALUES (?, ?, ?, ?, ?)`,
		rec.StartTime, rec.EndTime, rec.TotalReadings, rec.TotalMagnitude, rec.Score)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}

	for _, e := range rec.Events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_events (session_id, event_type, timestamp, magnitude)
			VALUES (?, ?, ?, ?)`,
			id, e.Type, e.Timestamp, e.Magnitude)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}
	return id, nil
}

// ListSessions returns all stored sessions, most recent first, with their
// events attached.
func (db *DB) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, start_time, end_time, total_readings, total_magnitude, score
		FROM sessions
		ORDER BY start_time DESC, session_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sessions {
		events, err := db.sessionEvents(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Events = events
	}
	return sessions, nil
}

// GetSession returns one stored session by id.
func (db *DB) GetSession(ctx context.Context, id int64) (SessionRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT session_id, start_time, end_time, total_readings, total_magnitude, score
		FROM sessions
		WHERE session_id = ?`, id)

	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, err
	}

	rec.Events, err = db.sessionEvents(ctx, rec.ID)
	if err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

// DeleteSession removes a session and, via the schema's cascade, its
// events.
func (db *DB) DeleteSession(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (SessionRecord, error) {
	var rec SessionRecord
	var endTime sql.NullInt64
	err := s.Scan(&rec.ID, &rec.StartTime, &endTime,
		&rec.TotalReadings, &rec.TotalMagnitude, &rec.Score)
	if err != nil {
		return SessionRecord{}, err
	}
	if endTime.Valid {
		rec.EndTime = &endTime.Int64
	}
	return rec, nil
}

func (db *DB) sessionEvents(ctx context.Context, sessionID int64) ([]EventRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_type, timestamp, magnitude
		FROM session_events
		WHERE session_id = ?
		ORDER BY timestamp ASC, event_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.Type, &e.Timestamp, &e.Magnitude); err != nil {
			return nil, err
		}
		// Reject rows written outside the mapping table rather than hand
		// callers a type the domain does not know.
		if _, err := eventTypeFromName(e.Type); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
