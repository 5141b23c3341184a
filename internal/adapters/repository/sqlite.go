package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/airrisk/internal/domain/model"
	"github.com/okian/airrisk/pkg/metrics"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// DefaultReadingRetention keeps one week of five-minute readings per sensor.
const DefaultReadingRetention = 2016

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS readings (
    sensor_id   TEXT    NOT NULL,
    ts          INTEGER NOT NULL,
    temperature REAL,
    humidity    REAL,
    co2         REAL,
    voc         REAL,
    pm25        REAL,
    pm10        REAL,
    PRIMARY KEY (sensor_id, ts)
);

CREATE TABLE IF NOT EXISTS alerts (
    id           TEXT    PRIMARY KEY,
    type         TEXT    NOT NULL,
    severity     TEXT    NOT NULL,
    message      TEXT    NOT NULL,
    sensor_id    TEXT    NOT NULL,
    triggered_at INTEGER NOT NULL,
    resolved     INTEGER NOT NULL DEFAULT 0,
    co2          REAL    NOT NULL DEFAULT 0,
    pm25         REAL    NOT NULL DEFAULT 0,
    voc          REAL    NOT NULL DEFAULT 0,
    reading_ts   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_sensor_type ON alerts(sensor_id, type, triggered_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_triggered_at ON alerts(triggered_at DESC);
`

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db        *sql.DB
	retention int
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Pass MemoryPath for an in-memory store.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := path
	if path != MemoryPath {
		// Pragmas in the DSN apply to every pooled connection.
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, retention: DefaultReadingRetention}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveReading implements Store.
func (s *SQLiteStore) SaveReading(ctx context.Context, r model.SensorReading) error {
	defer observe("save_reading", time.Now())

	args := []any{r.SensorID, r.Timestamp.UTC().UnixNano()}
	for _, m := range model.Metrics() {
		if v, ok := r.Value(m); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO readings(sensor_id, ts, temperature, humidity, co2, voc, pm25, pm10)
        VALUES(?,?,?,?,?,?,?,?)
        ON CONFLICT(sensor_id, ts) DO UPDATE SET
            temperature = excluded.temperature,
            humidity    = excluded.humidity,
            co2         = excluded.co2,
            voc         = excluded.voc,
            pm25        = excluded.pm25,
            pm10        = excluded.pm10`, args...); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	if s.retention > 0 {
		if _, err := tx.ExecContext(ctx, `
            DELETE FROM readings WHERE sensor_id = ? AND ts < (
                SELECT ts FROM readings WHERE sensor_id = ? ORDER BY ts DESC LIMIT 1 OFFSET ?
            )`, r.SensorID, r.SensorID, s.retention-1); err != nil {
			return fmt.Errorf("prune readings: %w", err)
		}
	}
	return tx.Commit()
}

// History implements Store.
func (s *SQLiteStore) History(ctx context.Context, sensorID string, before time.Time, limit int) ([]model.SensorReading, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if limit == 0 {
		return nil, nil
	}
	defer observe("history", time.Now())

	rows, err := s.db.QueryContext(ctx, `
        SELECT ts, temperature, humidity, co2, voc, pm25, pm10 FROM (
            SELECT * FROM readings WHERE sensor_id = ? AND ts < ? ORDER BY ts DESC LIMIT ?
        ) ORDER BY ts ASC`, sensorID, before.UTC().UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]model.SensorReading, 0, limit)
	for rows.Next() {
		var ts int64
		cols := make([]sql.NullFloat64, len(model.Metrics()))
		dest := []any{&ts}
		for i := range cols {
			dest = append(dest, &cols[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		values := make(map[model.Metric]float64, len(cols))
		for i, m := range model.Metrics() {
			if cols[i].Valid {
				values[m] = cols[i].Float64
			}
		}
		out = append(out, model.NewReading(sensorID, time.Unix(0, ts).UTC(), values))
	}
	return out, rows.Err()
}

// SaveAlert implements Store.
func (s *SQLiteStore) SaveAlert(ctx context.Context, a model.AlertEvent) error {
	defer observe("save_alert", time.Now())

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO alerts(id, type, severity, message, sensor_id, triggered_at, resolved, co2, pm25, voc, reading_ts)
        VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, string(a.Type), string(a.Severity), a.Message, a.SensorID,
		a.TriggeredAt.UTC().UnixNano(), boolInt(a.Resolved),
		a.Reading.CO2, a.Reading.PM25, a.Reading.VOC, a.Reading.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return nil
}

const alertColumns = `id, type, severity, message, sensor_id, triggered_at, resolved, co2, pm25, voc, reading_ts`

// ListAlerts implements Store.
func (s *SQLiteStore) ListAlerts(ctx context.Context, sensorID string, limit int) ([]model.AlertEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	defer observe("list_alerts", time.Now())

	query := `SELECT ` + alertColumns + ` FROM alerts`
	args := []any{}
	if sensorID != "" {
		query += ` WHERE sensor_id = ?`
		args = append(args, sensorID)
	}
	query += ` ORDER BY triggered_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out := make([]model.AlertEvent, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveAlert implements Store.
func (s *SQLiteStore) ResolveAlert(ctx context.Context, id string) (model.AlertEvent, error) {
	defer observe("resolve_alert", time.Now())

	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return model.AlertEvent{}, fmt.Errorf("resolve alert %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.AlertEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AlertEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// LastAlertAt implements Store.
func (s *SQLiteStore) LastAlertAt(ctx context.Context, sensorID string, t model.AlertType) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(triggered_at) FROM alerts WHERE sensor_id = ? AND type = ?`, sensorID, string(t)).Scan(&ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last alert: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, ts.Int64).UTC(), true, nil
}

// Counts implements Store.
func (s *SQLiteStore) Counts(ctx context.Context) (int, int, error) {
	var readings, alerts int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM readings), (SELECT COUNT(*) FROM alerts)`).Scan(&readings, &alerts)
	if err != nil {
		return 0, 0, fmt.Errorf("count rows: %w", err)
	}
	return readings, alerts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(sc scanner) (model.AlertEvent, error) {
	var (
		a                   model.AlertEvent
		typ, sev            string
		triggered, readTime int64
	)
	err := sc.Scan(&a.ID, &typ, &sev, &a.Message, &a.SensorID, &triggered, &a.Resolved,
		&a.Reading.CO2, &a.Reading.PM25, &a.Reading.VOC, &readTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan alert: %w", err)
	}
	a.Type = model.AlertType(typ)
	a.Severity = model.Severity(sev)
	a.TriggeredAt = time.Unix(0, triggered).UTC()
	a.Reading.Timestamp = time.Unix(0, readTime).UTC()
	return a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
