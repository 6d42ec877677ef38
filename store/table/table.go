// Package table provides a relational-table-backed Store on top of GORM.
// The default driver is glebarez/sqlite (pure Go, no CGO); any GORM dialect
// works by passing an already opened *gorm.DB.
package table

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/unkn0wn-root/tagcache/store"
)

// row is the persisted shape of a cache entry. ExpiresAt is unix nanoseconds;
// 0 means the entry never expires.
type row struct {
	CacheKey  string `gorm:"column:cache_key;primaryKey"`
	Value     []byte `gorm:"column:value"`
	ExpiresAt int64  `gorm:"column:expires_at;index"`
}

func (row) TableName() string { return "cache_entries" }

type Store struct {
	db *gorm.DB
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.Incrementer = (*Store)(nil)
)

type Config struct {
	// DSN opens a sqlite database at this path (":memory:" works for tests).
	// Ignored when DB is set.
	DSN string
	// DB reuses an existing GORM handle (any dialect).
	DB *gorm.DB
}

func New(cfg Config) (*Store, error) {
	db := cfg.DB
	if db == nil {
		if cfg.DSN == "" {
			return nil, errors.New("table store: DSN or DB is required")
		}
		var err error
		db, err = gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, err
		}
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var r row
	err := s.db.WithContext(ctx).First(&r, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expired(r, time.Now()) {
		// lazy eviction
		_ = s.db.WithContext(ctx).Delete(&row{}, "cache_key = ?", key).Error
		return nil, false, nil
	}
	return r.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&row{CacheKey: key, Value: value, ExpiresAt: expiryNano(ttl)}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&row{}, "cache_key = ?", key).Error
}

func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&row{}).Error
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	var rows []row
	if err := s.db.WithContext(ctx).Where("cache_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, err
	}
	at := time.Now()
	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		if expired(r, at) {
			_ = s.db.WithContext(ctx).Delete(&row{}, "cache_key = ?", r.CacheKey).Error
			continue
		}
		out[r.CacheKey] = r.Value
	}
	return out, nil
}

func (s *Store) SetMulti(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	exp := expiryNano(ttl)
	rows := make([]row, 0, len(items))
	for k, v := range items {
		rows = append(rows, row{CacheKey: k, Value: v, ExpiresAt: exp})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&rows).Error
}

func (s *Store) DeleteMulti(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("cache_key IN ?", keys).Delete(&row{}).Error
}

// Increment implements store.Incrementer inside a transaction, so the
// read-modify-write is atomic against other writers on the same connection.
func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	var newVal int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r row
		err := tx.First(&r, "cache_key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			r = row{CacheKey: key}
		case err != nil:
			return err
		case expired(r, time.Now()):
			r = row{CacheKey: key}
		}

		cur, err := store.ParseCounter(r.Value)
		if err != nil {
			return err
		}
		newVal = cur + delta
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
		}).Create(&row{CacheKey: key, Value: store.FormatCounter(newVal)}).Error
	})
	if err != nil {
		return 0, err
	}
	return newVal, nil
}

// PurgeExpired removes dead rows in bulk. Callers may run it from a cron or
// maintenance task; the store never needs it for correctness.
func (s *Store) PurgeExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at > 0 AND expires_at < ?", time.Now().UnixNano()).
		Delete(&row{}).Error
}

func (s *Store) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func expiryNano(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixNano()
}

func expired(r row, at time.Time) bool {
	return r.ExpiresAt > 0 && at.UnixNano() > r.ExpiresAt
}
