package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// BlobStore is the persistent storage capability consumed by the disk tier.
// Entries are opaque blobs keyed by content fingerprint; the store tracks
// the metadata the tier's LRU eviction needs.
type BlobStore interface {
	// Read returns the blob for key, refreshing its access time.
	Read(ctx context.Context, key string) (blob []byte, found bool, err error)

	// Write upserts the blob under key with the current access time.
	Write(ctx context.Context, key string, blob []byte) error

	// SizeBytes returns the total stored bytes.
	SizeBytes(ctx context.Context) (int64, error)

	// EvictOne removes the least-recently-accessed entry and returns the
	// bytes freed. Returns 0 when the store is empty. Entries with equal
	// access times evict in insertion order.
	EvictOne(ctx context.Context) (int64, error)

	// Entries returns the stored entry count.
	Entries(ctx context.Context) (int64, error)

	// Close releases the underlying handle.
	Close() error
}

type vectorRow struct {
	ID         uint   `gorm:"primarykey"`
	CacheKey   string `gorm:"column:cache_key;uniqueIndex;size:64"`
	Blob       []byte `gorm:"column:blob"`
	SizeBytes  int64  `gorm:"column:size_bytes"`
	LastAccess int64  `gorm:"column:last_access;index"`
}

func (vectorRow) TableName() string { return "vector_cache" }

// SQLiteStore is a BlobStore backed by a single sqlite table.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the store at path. Use ":memory:" for an
// ephemeral store in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	if err := db.AutoMigrate(&vectorRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Read implements BlobStore.
func (s *SQLiteStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var row vectorRow
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	err = s.db.WithContext(ctx).Model(&vectorRow{}).
		Where("id = ?", row.ID).
		Update("last_access", time.Now().UnixNano()).Error
	if err != nil {
		return nil, false, err
	}
	return row.Blob, true, nil
}

// Write implements BlobStore.
func (s *SQLiteStore) Write(ctx context.Context, key string, blob []byte) error {
	row := vectorRow{
		CacheKey:   key,
		Blob:       blob,
		SizeBytes:  int64(len(blob)),
		LastAccess: time.Now().UnixNano(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob", "size_bytes", "last_access"}),
	}).Create(&row).Error
}

// SizeBytes implements BlobStore.
func (s *SQLiteStore) SizeBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&vectorRow{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	return total, err
}

// EvictOne implements BlobStore.
func (s *SQLiteStore) EvictOne(ctx context.Context) (int64, error) {
	var row vectorRow
	err := s.db.WithContext(ctx).
		Order("last_access asc, id asc").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := s.db.WithContext(ctx).Delete(&vectorRow{}, row.ID).Error; err != nil {
		return 0, err
	}
	return row.SizeBytes, nil
}

// Entries implements BlobStore.
func (s *SQLiteStore) Entries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&vectorRow{}).Count(&count).Error
	return count, err
}

// Close implements BlobStore.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
