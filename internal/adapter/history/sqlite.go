// Package history keeps a local trip log of weight readings and overweight
// alerts in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"suitcase-link/internal/domain"
)

// DefaultLimit caps list queries when the caller passes a non-positive limit.
const DefaultLimit = 100

// ReadingRecord is one stored reading with the allowance it was judged against.
type ReadingRecord struct {
	Value      float64              `json:"value"`
	Unit       domain.Unit          `json:"unit"`
	Source     domain.TransportKind `json:"source"`
	Pounds     float64              `json:"pounds"`
	Threshold  float64              `json:"threshold"`
	OverLimit  bool                 `json:"over_limit"`
	Class      domain.ClassOfTravel `json:"class"`
	ReceivedAt time.Time            `json:"received_at"`
}

// Store implements the trip log using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at dbPath and runs the
// schema migration. ":memory:" is accepted for tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			value       REAL NOT NULL,
			unit        TEXT NOT NULL,
			source      TEXT NOT NULL,
			pounds      REAL NOT NULL,
			threshold   REAL NOT NULL,
			over_limit  INTEGER NOT NULL DEFAULT 0,
			class       TEXT NOT NULL,
			received_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_readings_received ON readings(received_at);
		CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL,
			pounds      REAL NOT NULL,
			threshold   REAL NOT NULL,
			class       TEXT NOT NULL,
			value       REAL NOT NULL,
			unit        TEXT NOT NULL,
			source      TEXT NOT NULL,
			received_at INTEGER NOT NULL DEFAULT 0,
			fired_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_fired ON alerts(fired_at);
	`)
	if err != nil {
		return err
	}
	return addAlertReceivedAt(db)
}

// addAlertReceivedAt upgrades trip logs written before alerts kept the
// reading's own timestamp. Old rows read back with fired_at in its place.
func addAlertReceivedAt(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(alerts)")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if name == "received_at" {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()
	_, err = db.Exec("ALTER TABLE alerts ADD COLUMN received_at INTEGER NOT NULL DEFAULT 0")
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordReading appends a judged reading.
func (s *Store) RecordReading(ctx context.Context, p domain.ReadingPayload) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (value, unit, source, pounds, threshold, over_limit, class, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Reading.Value, string(p.Reading.Unit), string(p.Reading.Source),
		p.Pounds, p.Threshold, p.OverLimit, string(p.Class),
		p.Reading.ReceivedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// RecordAlert stores a fired alert. Re-recording the same alert ID is a no-op.
func (s *Store) RecordAlert(ctx context.Context, a domain.Alert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alerts (id, title, body, pounds, threshold, class, value, unit, source, received_at, fired_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Body, a.Pounds, a.Threshold, string(a.Class),
		a.Reading.Value, string(a.Reading.Unit), string(a.Reading.Source),
		a.Reading.ReceivedAt.UTC().UnixNano(), a.FiredAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Readings returns up to limit readings, newest first.
func (s *Store) Readings(ctx context.Context, limit int) ([]ReadingRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT value, unit, source, pounds, threshold, over_limit, class, received_at
		 FROM readings ORDER BY received_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReadingRecord
	for rows.Next() {
		var (
			r          ReadingRecord
			unit, src  string
			class      string
			receivedAt int64
		)
		if err := rows.Scan(&r.Value, &unit, &src, &r.Pounds, &r.Threshold, &r.OverLimit, &class, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Unit = domain.Unit(unit)
		r.Source = domain.TransportKind(src)
		r.Class = domain.ClassOfTravel(class)
		r.ReceivedAt = time.Unix(0, receivedAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Alerts returns up to limit alerts, newest first.
func (s *Store) Alerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, pounds, threshold, class, value, unit, source, received_at, fired_at
		 FROM alerts ORDER BY fired_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a                domain.Alert
			class, unit, src    string
			receivedAt, firedAt int64
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Pounds, &a.Threshold, &class,
			&a.Reading.Value, &unit, &src, &receivedAt, &firedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Class = domain.ClassOfTravel(class)
		a.Reading.Unit = domain.Unit(unit)
		a.Reading.Source = domain.TransportKind(src)
		a.FiredAt = time.Unix(0, firedAt).UTC()
		a.Reading.ReceivedAt = a.FiredAt
		if receivedAt != 0 {
			a.Reading.ReceivedAt = time.Unix(0, receivedAt).UTC()
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Prune deletes readings and alerts older than before and reports how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UTC().UnixNano()
	var total int64
	for _, q := range []string{
		"DELETE FROM readings WHERE received_at < ?",
		"DELETE FROM alerts WHERE fired_at < ?",
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune history: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Attach records reading and alert events from the bus. The returned
// function detaches both subscriptions; on a bus that supports it, events
// already queued are written before it returns, so the store can be closed
// right after.
func (s *Store) Attach(bus domain.EventBus, logger *slog.Logger) func() {
	subscribe := bus.Subscribe
	if db, ok := bus.(domain.DrainingBus); ok {
		subscribe = db.SubscribeDrained
	}
	unsubReading := subscribe(domain.EventReading, func(ctx context.Context, e domain.Event) {
		p, err := domain.DecodePayload[domain.ReadingPayload](e)
		if err != nil {
			logger.Error("decode reading event", "error", err)
			return
		}
		if err := s.RecordReading(ctx, p); err != nil {
			logger.Warn("history write failed", "error", err)
		}
	})
	unsubAlert := subscribe(domain.EventAlertFired, func(ctx context.Context, e domain.Event) {
		a, err := domain.DecodePayload[domain.Alert](e)
		if err != nil {
			logger.Error("decode alert event", "error", err)
			return
		}
		if err := s.RecordAlert(ctx, a); err != nil {
			logger.Warn("history write failed", "alert_id", a.ID, "error", err)
		}
	})
	return func() {
		unsubReading()
		unsubAlert()
	}
}
