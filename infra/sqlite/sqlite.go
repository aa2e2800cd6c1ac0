// Package sqlite persists every collection in an embedded SQLite database.
// Rows keep a JSON copy of the record next to the columns used for lookups.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS delivery_logs (
    id TEXT PRIMARY KEY,
    reminder_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    status TEXT NOT NULL,
    recipient TEXT NOT NULL,
    sent_at INTEGER NOT NULL,
    data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS delivery_logs_reminder ON delivery_logs(reminder_id);
CREATE INDEX IF NOT EXISTS delivery_logs_sent_at ON delivery_logs(sent_at);
CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS contacts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS channel_settings (
    channel TEXT PRIMARY KEY,
    data TEXT NOT NULL
);`

// Store implements store.Store and store.Seeder on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetReminder(ctx context.Context, id string) (model.ReminderConfig, error) {
	var r model.ReminderConfig
	err := s.getJSON(ctx, &r, `SELECT data FROM reminders WHERE id = ?`, id)
	if errors.Is(err, store.ErrNotFound) {
		return r, fmt.Errorf("reminder %s: %w", id, err)
	}
	return r, err
}

func (s *Store) ListReminders(ctx context.Context) ([]model.ReminderConfig, error) {
	var out []model.ReminderConfig
	err := listJSON(ctx, s.db, `SELECT data FROM reminders ORDER BY created_at, id`, nil, func(r model.ReminderConfig) {
		out = append(out, r)
	})
	return out, err
}

func (s *Store) AddReminder(ctx context.Context, r model.ReminderConfig) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO reminders (id, created_at, data) VALUES (?, ?, ?)`,
		r.ID, unixNano(r.CreatedAt), string(data))
	if err != nil && isConstraint(err) {
		return fmt.Errorf("reminder %s already exists", r.ID)
	}
	return err
}

func (s *Store) UpdateReminder(ctx context.Context, r model.ReminderConfig) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET data = ? WHERE id = ?`, string(data), r.ID)
	if err != nil {
		return err
	}
	return affected(res, "reminder", r.ID)
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res, "reminder", id)
}

// Append inserts a delivery log row. Rows are never updated.
func (s *Store) Append(ctx context.Context, l model.DeliveryLog) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO delivery_logs (id, reminder_id, channel, status, recipient, sent_at, data)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ReminderID, string(l.Channel), string(l.Status), strings.ToLower(l.Recipient), unixNano(l.SentAt), string(data))
	if err != nil && isConstraint(err) {
		return fmt.Errorf("delivery log %s already exists", l.ID)
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (model.DeliveryLog, error) {
	var l model.DeliveryLog
	err := s.getJSON(ctx, &l, `SELECT data FROM delivery_logs WHERE id = ?`, id)
	if errors.Is(err, store.ErrNotFound) {
		return l, fmt.Errorf("delivery log %s: %w", id, err)
	}
	return l, err
}

// Query filters in SQL and returns rows newest first.
func (s *Store) Query(ctx context.Context, q store.LogQuery) ([]model.DeliveryLog, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		where = append(where, cond)
		args = append(args, v)
	}
	if q.ReminderID != "" {
		add("reminder_id = ?", q.ReminderID)
	}
	if q.Channel != "" {
		add("channel = ?", string(q.Channel))
	}
	if q.Status != "" {
		add("status = ?", string(q.Status))
	}
	if q.Recipient != "" {
		add("recipient = ?", strings.ToLower(q.Recipient))
	}
	if !q.Start.IsZero() {
		add("sent_at >= ?", unixNano(q.Start))
	}
	if !q.End.IsZero() {
		add("sent_at <= ?", unixNano(q.End))
	}
	query := `SELECT data FROM delivery_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY sent_at DESC, id DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, q.Limit)
	}
	var out []model.DeliveryLog
	err := listJSON(ctx, s.db, query, args, func(l model.DeliveryLog) { out = append(out, l) })
	return out, err
}

func (s *Store) ListContacts(ctx context.Context) ([]model.Contact, error) {
	var out []model.Contact
	err := listJSON(ctx, s.db, `SELECT data FROM contacts ORDER BY seq`, nil, func(c model.Contact) { out = append(out, c) })
	return out, err
}

func (s *Store) PutContact(ctx context.Context, c model.Contact) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO contacts (data) VALUES (?)`, string(data))
	return err
}

func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var out []model.Document
	err := listJSON(ctx, s.db, `SELECT data FROM documents ORDER BY id`, nil, func(d model.Document) { out = append(out, d) })
	return out, err
}

func (s *Store) GetDocument(ctx context.Context, id string) (model.Document, error) {
	var d model.Document
	err := s.getJSON(ctx, &d, `SELECT data FROM documents WHERE id = ?`, id)
	if errors.Is(err, store.ErrNotFound) {
		return d, fmt.Errorf("document %s: %w", id, err)
	}
	return d, err
}

func (s *Store) PutDocument(ctx context.Context, d model.Document) error {
	return s.upsert(ctx, `INSERT INTO documents (id, data) VALUES (?, ?)
        ON CONFLICT(id) DO UPDATE SET data = excluded.data`, d.ID, d)
}

func (s *Store) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	var out []model.Vehicle
	err := listJSON(ctx, s.db, `SELECT data FROM vehicles ORDER BY id`, nil, func(v model.Vehicle) { out = append(out, v) })
	return out, err
}

func (s *Store) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var v model.Vehicle
	err := s.getJSON(ctx, &v, `SELECT data FROM vehicles WHERE id = ?`, id)
	if errors.Is(err, store.ErrNotFound) {
		return v, fmt.Errorf("vehicle %s: %w", id, err)
	}
	return v, err
}

func (s *Store) PutVehicle(ctx context.Context, v model.Vehicle) error {
	return s.upsert(ctx, `INSERT INTO vehicles (id, data) VALUES (?, ?)
        ON CONFLICT(id) DO UPDATE SET data = excluded.data`, v.ID, v)
}

func (s *Store) GetChannelSettings(ctx context.Context, ch model.Channel) (model.ChannelSettings, bool, error) {
	var st model.ChannelSettings
	err := s.getJSON(ctx, &st, `SELECT data FROM channel_settings WHERE channel = ?`, string(ch))
	if errors.Is(err, store.ErrNotFound) {
		return model.ChannelSettings{}, false, nil
	}
	if err != nil {
		return model.ChannelSettings{}, false, err
	}
	return st, true, nil
}

func (s *Store) SaveChannelSettings(ctx context.Context, st model.ChannelSettings) error {
	if !st.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", st.Channel)
	}
	return s.upsert(ctx, `INSERT INTO channel_settings (channel, data) VALUES (?, ?)
        ON CONFLICT(channel) DO UPDATE SET data = excluded.data`, string(st.Channel), st)
}

func (s *Store) upsert(ctx context.Context, query, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, key, string(data))
	return err
}

func (s *Store) getJSON(ctx context.Context, dst any, query string, args ...any) error {
	var data string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dst)
}

func listJSON[T any](ctx context.Context, db *sql.DB, query string, args []any, fn func(T)) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return err
		}
		fn(v)
	}
	return rows.Err()
}

func affected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ store.Store            = (*Store)(nil)
	_ store.DeliveryLogStore = (*Store)(nil)
	_ store.Seeder           = (*Store)(nil)
)
