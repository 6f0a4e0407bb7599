package alarms

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	domain "github.com/oshokin/sayit-alarm/internal/domain/alarm"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// defaultDirPermissions is used for the database parent directory.
const defaultDirPermissions = 0o750

// ErrNotFound is returned when an alarm does not exist.
var ErrNotFound = domain.ErrNotFound

const schema = `
CREATE TABLE IF NOT EXISTS alarms (
	id         INTEGER PRIMARY KEY,
	hour       INTEGER NOT NULL,
	minute     INTEGER NOT NULL,
	repeat     INTEGER NOT NULL DEFAULT 0,
	label      TEXT    NOT NULL DEFAULT '',
	enabled    INTEGER NOT NULL DEFAULT 1,
	alert_type TEXT    NOT NULL,
	ringtone   TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS alarm_scripts (
	alarm_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	text     TEXT    NOT NULL,
	PRIMARY KEY (alarm_id, position)
);

CREATE INDEX IF NOT EXISTS idx_alarms_enabled ON alarms(enabled);
`

const selectAlarms = `
SELECT id, hour, minute, repeat, label, enabled, alert_type, ringtone
FROM alarms`

// SQLiteRepository stores alarms in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), defaultDirPermissions); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers anyway, and every in-memory connection is a separate database.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Get returns the alarm with the given id.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*domain.Alarm, error) {
	result, err := r.query(ctx, selectAlarms+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("alarm %d: %w", id, ErrNotFound)
	}

	return result[0], nil
}

// List returns every alarm ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]*domain.Alarm, error) {
	return r.query(ctx, selectAlarms+` ORDER BY id`)
}

// ListEnabled returns the enabled alarms ordered by id.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]*domain.Alarm, error) {
	return r.query(ctx, selectAlarms+` WHERE enabled = 1 ORDER BY id`)
}

// Put validates and inserts or replaces an alarm together with its scripts.
func (r *SQLiteRepository) Put(ctx context.Context, alarm *domain.Alarm) error {
	if err := alarm.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alarms (id, hour, minute, repeat, label, enabled, alert_type, ringtone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hour = excluded.hour,
			minute = excluded.minute,
			repeat = excluded.repeat,
			label = excluded.label,
			enabled = excluded.enabled,
			alert_type = excluded.alert_type,
			ringtone = excluded.ringtone`,
		alarm.ID,
		alarm.Hour,
		alarm.Minute,
		int64(alarm.WeeklyRepeat),
		alarm.Label,
		alarm.Enabled,
		string(alarm.AlertType),
		alarm.RingtoneRef,
	)
	if err != nil {
		return fmt.Errorf("upsert alarm %d: %w", alarm.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM alarm_scripts WHERE alarm_id = ?`, alarm.ID); err != nil {
		return fmt.Errorf("delete scripts of alarm %d: %w", alarm.ID, err)
	}

	for position, text := range alarm.Scripts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO alarm_scripts (alarm_id, position, text) VALUES (?, ?, ?)`,
			alarm.ID, position, text,
		)
		if err != nil {
			return fmt.Errorf("insert script %d of alarm %d: %w", position, alarm.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit alarm %d: %w", alarm.ID, err)
	}

	return nil
}

// SetEnabled switches an alarm on or off.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE alarms SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("update alarm %d: %w", id, err)
	}

	return requireAffected(result, id)
}

// Delete removes an alarm and its scripts.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM alarm_scripts WHERE alarm_id = ?`, id); err != nil {
		return fmt.Errorf("delete scripts of alarm %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alarm %d: %w", id, err)
	}

	if err = requireAffected(result, id); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete of alarm %d: %w", id, err)
	}

	return nil
}

// query loads the alarms selected by query and attaches their scripts.
func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Alarm, error) {
	result, err := r.scanAlarms(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	for _, alarm := range result {
		if alarm.Scripts, err = r.scripts(ctx, alarm.ID); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *SQLiteRepository) scanAlarms(ctx context.Context, query string, args ...any) ([]*domain.Alarm, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var result []*domain.Alarm

	for rows.Next() {
		var (
			alarm     domain.Alarm
			repeat    int64
			alertType string
		)

		err = rows.Scan(
			&alarm.ID,
			&alarm.Hour,
			&alarm.Minute,
			&repeat,
			&alarm.Label,
			&alarm.Enabled,
			&alertType,
			&alarm.RingtoneRef,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}

		alarm.WeeklyRepeat = domain.WeekdaySet(repeat) //nolint:gosec // Stored values are validated on Put.
		alarm.AlertType = domain.AlertType(alertType)

		result = append(result, &alarm)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarms: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) scripts(ctx context.Context, alarmID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT text FROM alarm_scripts WHERE alarm_id = ? ORDER BY position`,
		alarmID,
	)
	if err != nil {
		return nil, fmt.Errorf("query scripts of alarm %d: %w", alarmID, err)
	}

	defer func() { _ = rows.Close() }()

	var result []string

	for rows.Next() {
		var text string
		if err = rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan script of alarm %d: %w", alarmID, err)
		}

		result = append(result, text)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scripts of alarm %d: %w", alarmID, err)
	}

	return result, nil
}

func requireAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for alarm %d: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("alarm %d: %w", id, ErrNotFound)
	}

	return nil
}
