// Package postgres persists every collection in PostgreSQL through gorm.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/store"
)

// Config holds connection settings.
type Config struct {
	DSN             string `json:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds"`
	// AutoMigrate creates the tables on open.
	AutoMigrate bool `json:"auto_migrate"`
}

func (c *Config) SetDefaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 300
	}
}

type reminderRow struct {
	ID      string `gorm:"primaryKey"`
	Created int64  `gorm:"column:created_at;index"`
	Data    string `gorm:"type:jsonb;not null"`
}

func (reminderRow) TableName() string { return "reminders" }

type deliveryLogRow struct {
	ID         string `gorm:"primaryKey"`
	ReminderID string `gorm:"index;not null"`
	Channel    string `gorm:"not null"`
	Status     string `gorm:"not null"`
	Recipient  string `gorm:"not null"`
	SentAt     int64  `gorm:"index;not null"`
	Data       string `gorm:"type:jsonb;not null"`
}

func (deliveryLogRow) TableName() string { return "delivery_logs" }

type vehicleRow struct {
	ID   string `gorm:"primaryKey"`
	Data string `gorm:"type:jsonb;not null"`
}

func (vehicleRow) TableName() string { return "vehicles" }

type documentRow struct {
	ID   string `gorm:"primaryKey"`
	Data string `gorm:"type:jsonb;not null"`
}

func (documentRow) TableName() string { return "documents" }

type contactRow struct {
	Seq  int64  `gorm:"primaryKey;autoIncrement"`
	Data string `gorm:"type:jsonb;not null"`
}

func (contactRow) TableName() string { return "contacts" }

type settingsRow struct {
	Channel string `gorm:"primaryKey"`
	Data    string `gorm:"type:jsonb;not null"`
}

func (settingsRow) TableName() string { return "channel_settings" }

// Store implements store.Store and store.Seeder on PostgreSQL.
type Store struct {
	db *gorm.DB
}

var (
	_ store.Store            = (*Store)(nil)
	_ store.DeliveryLogStore = (*Store)(nil)
	_ store.Seeder           = (*Store)(nil)
)

// Open connects with cfg.DSN.
func Open(cfg Config) (*Store, error) {
	cfg.SetDefaults()
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	s := New(db)
	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store { return &Store{db: db} }

// Migrate creates or updates the tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&reminderRow{}, &deliveryLogRow{}, &vehicleRow{}, &documentRow{}, &contactRow{}, &settingsRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) GetReminder(ctx context.Context, id string) (model.ReminderConfig, error) {
	var row reminderRow
	var r model.ReminderConfig
	if err := s.first(ctx, &row, "id = ?", id); err != nil {
		return r, fmt.Errorf("reminder %s: %w", id, err)
	}
	return r, json.Unmarshal([]byte(row.Data), &r)
}

func (s *Store) ListReminders(ctx context.Context) ([]model.ReminderConfig, error) {
	var rows []reminderRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.ReminderConfig, 0, len(rows))
	for _, row := range rows {
		var r model.ReminderConfig
		if err := json.Unmarshal([]byte(row.Data), &r); err != nil {
			return nil, fmt.Errorf("decode reminder %s: %w", row.ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) AddReminder(ctx context.Context, r model.ReminderConfig) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Create(&reminderRow{ID: r.ID, Created: unixNano(r.CreatedAt), Data: string(data)}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("reminder %s already exists", r.ID)
	}
	return err
}

func (s *Store) UpdateReminder(ctx context.Context, r model.ReminderConfig) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&reminderRow{}).Where("id = ?", r.ID).Update("data", string(data))
	return affected(res, "reminder", r.ID)
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&reminderRow{})
	return affected(res, "reminder", id)
}

func (s *Store) Append(ctx context.Context, l model.DeliveryLog) error {
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Create(&deliveryLogRow{
		ID:         l.ID,
		ReminderID: l.ReminderID,
		Channel:    string(l.Channel),
		Status:     string(l.Status),
		Recipient:  strings.ToLower(l.Recipient),
		SentAt:     unixNano(l.SentAt),
		Data:       string(data),
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("delivery log %s already exists", l.ID)
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (model.DeliveryLog, error) {
	var row deliveryLogRow
	var l model.DeliveryLog
	if err := s.first(ctx, &row, "id = ?", id); err != nil {
		return l, fmt.Errorf("delivery log %s: %w", id, err)
	}
	return l, json.Unmarshal([]byte(row.Data), &l)
}

func (s *Store) Query(ctx context.Context, q store.LogQuery) ([]model.DeliveryLog, error) {
	tx := s.db.WithContext(ctx).Model(&deliveryLogRow{})
	if q.ReminderID != "" {
		tx = tx.Where("reminder_id = ?", q.ReminderID)
	}
	if q.Channel != "" {
		tx = tx.Where("channel = ?", string(q.Channel))
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	if q.Recipient != "" {
		tx = tx.Where("recipient = ?", strings.ToLower(q.Recipient))
	}
	if !q.Start.IsZero() {
		tx = tx.Where("sent_at >= ?", q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		tx = tx.Where("sent_at <= ?", q.End.UnixNano())
	}
	tx = tx.Order("sent_at DESC, id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var rows []deliveryLogRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.DeliveryLog, 0, len(rows))
	for _, row := range rows {
		var l model.DeliveryLog
		if err := json.Unmarshal([]byte(row.Data), &l); err != nil {
			return nil, fmt.Errorf("decode delivery log %s: %w", row.ID, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) ListContacts(ctx context.Context) ([]model.Contact, error) {
	var rows []contactRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeAll[model.Contact](rows, func(r contactRow) string { return r.Data })
}

func (s *Store) PutContact(ctx context.Context, c model.Contact) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&contactRow{Data: string(data)}).Error
}

func (s *Store) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeAll[model.Document](rows, func(r documentRow) string { return r.Data })
}

func (s *Store) GetDocument(ctx context.Context, id string) (model.Document, error) {
	var row documentRow
	var d model.Document
	if err := s.first(ctx, &row, "id = ?", id); err != nil {
		return d, fmt.Errorf("document %s: %w", id, err)
	}
	return d, json.Unmarshal([]byte(row.Data), &d)
}

func (s *Store) PutDocument(ctx context.Context, d model.Document) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "id", &documentRow{ID: d.ID, Data: string(data)})
}

func (s *Store) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	var rows []vehicleRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeAll[model.Vehicle](rows, func(r vehicleRow) string { return r.Data })
}

func (s *Store) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var row vehicleRow
	var v model.Vehicle
	if err := s.first(ctx, &row, "id = ?", id); err != nil {
		return v, fmt.Errorf("vehicle %s: %w", id, err)
	}
	return v, json.Unmarshal([]byte(row.Data), &v)
}

func (s *Store) PutVehicle(ctx context.Context, v model.Vehicle) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "id", &vehicleRow{ID: v.ID, Data: string(data)})
}

func (s *Store) GetChannelSettings(ctx context.Context, ch model.Channel) (model.ChannelSettings, bool, error) {
	var row settingsRow
	err := s.first(ctx, &row, "channel = ?", string(ch))
	if errors.Is(err, store.ErrNotFound) {
		return model.ChannelSettings{}, false, nil
	}
	if err != nil {
		return model.ChannelSettings{}, false, err
	}
	var st model.ChannelSettings
	if err := json.Unmarshal([]byte(row.Data), &st); err != nil {
		return model.ChannelSettings{}, false, err
	}
	return st, true, nil
}

func (s *Store) SaveChannelSettings(ctx context.Context, st model.ChannelSettings) error {
	if !st.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", st.Channel)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "channel", &settingsRow{Channel: string(st.Channel), Data: string(data)})
}

func (s *Store) first(ctx context.Context, dst any, cond string, args ...any) error {
	err := s.db.WithContext(ctx).Where(cond, args...).Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) upsert(ctx context.Context, key string, row any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(row).Error
}

func decodeAll[T, R any](rows []R, data func(R) string) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := json.Unmarshal([]byte(data(row)), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func affected(res *gorm.DB, kind, id string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
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
