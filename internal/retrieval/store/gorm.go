package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Blob is the row layout of GormStore.
type Blob struct {
	Key       string    `gorm:"column:blob_key;primaryKey;type:varchar(512)"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for Blob.
func (Blob) TableName() string {
	return "retrieval_blobs"
}

// GormStore keeps blobs in a single SQL table.
type GormStore struct {
	db      *gorm.DB
	dialect string
}

var _ BlobStore = (*GormStore)(nil)

// NewGormStore migrates the blob table on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Blob{}); err != nil {
		return nil, fmt.Errorf("migrate blob table: %w", err)
	}
	return &GormStore{db: db, dialect: db.Dialector.Name()}, nil
}

// OpenSQLite opens a pure-Go sqlite database. Use ":memory:" for tests.
func OpenSQLite(path string, logLevel int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// 内存库每个连接独立，限制为单连接
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// OpenMySQL connects with the given DSN and applies the pool limits.
func OpenMySQL(dsn string, pool PoolConfig, logLevel int) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return db, pool.apply(db)
}

// OpenPostgres connects with the given DSN and applies the pool limits.
func OpenPostgres(dsn string, pool PoolConfig, logLevel int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, pool.apply(db)
}

// PoolConfig holds database/sql connection pool limits.
type PoolConfig struct {
	MaxIdleConnections    int
	MaxOpenConnections    int
	MaxConnectionLifeTime time.Duration
}

func (c PoolConfig) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if c.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConnections)
	}
	if c.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConnections)
	}
	if c.MaxConnectionLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(c.MaxConnectionLifeTime)
	}
	return nil
}

func gormConfig(logLevel int) *gorm.Config {
	level := gormlogger.Silent
	switch logLevel {
	case 2:
		level = gormlogger.Error
	case 3:
		level = gormlogger.Warn
	case 4:
		level = gormlogger.Info
	}
	return &gorm.Config{Logger: newGormLogger(level, 200*time.Millisecond)}
}

func (g *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var b Blob
	err := g.db.WithContext(ctx).Where("blob_key = ?", key).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b.Value, nil
}

func (g *GormStore) Put(ctx context.Context, key string, value []byte) error {
	b := Blob{Key: key, Value: value, UpdatedAt: time.Now()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&b).Error
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (g *GormStore) Delete(ctx context.Context, key string) error {
	res := g.db.WithContext(ctx).Where("blob_key = ?", key).Delete(&Blob{})
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (g *GormStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := g.db.WithContext(ctx).Model(&Blob{}).
		Where("blob_key LIKE ? ESCAPE '!'", likeEscaper.Replace(prefix)+"%").
		Order("blob_key").
		Pluck("blob_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	// LIKE is case-insensitive on some dialects
	return slices.DeleteFunc(keys, func(k string) bool { return !strings.HasPrefix(k, prefix) }), nil
}

func (g *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormStore) Name() string { return "gorm/" + g.dialect }
