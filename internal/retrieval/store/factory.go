package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/pkg/options/mongodb"
	"github.com/kart-io/retrieval-x/pkg/options/mysql"
	"github.com/kart-io/retrieval-x/pkg/options/postgres"
	"github.com/kart-io/retrieval-x/pkg/options/redis"
)

// Connections carries the connection sections a backend may need.
type Connections struct {
	Redis    *redis.Options
	MySQL    *mysql.Options
	Postgres *postgres.Options
	MongoDB  *mongodb.Options
}

// New opens the backend selected by opts.
func New(ctx context.Context, opts *Options, conns Connections) (BlobStore, error) {
	var (
		s   BlobStore
		err error
	)
	switch opts.Backend {
	case BackendMemory:
		s = NewMemoryStore()
	case BackendRedis:
		if conns.Redis == nil {
			return nil, fmt.Errorf("redis backend selected without redis options")
		}
		client, cerr := conns.Redis.NewClient(ctx)
		if cerr != nil {
			return nil, cerr
		}
		s = NewRedisStore(client, opts.RedisNamespace)
	case BackendSQLite:
		db, oerr := OpenSQLite(opts.SQLitePath, 1)
		if oerr != nil {
			return nil, oerr
		}
		s, err = NewGormStore(db)
	case BackendMySQL:
		if conns.MySQL == nil {
			return nil, fmt.Errorf("mysql backend selected without mysql options")
		}
		o := conns.MySQL
		db, oerr := OpenMySQL(o.DSN(), PoolConfig{
			MaxIdleConnections:    o.MaxIdleConnections,
			MaxOpenConnections:    o.MaxOpenConnections,
			MaxConnectionLifeTime: o.MaxConnectionLifeTime,
		}, o.LogLevel)
		if oerr != nil {
			return nil, oerr
		}
		s, err = NewGormStore(db)
	case BackendPostgres:
		if conns.Postgres == nil {
			return nil, fmt.Errorf("postgres backend selected without postgres options")
		}
		o := conns.Postgres
		db, oerr := OpenPostgres(o.DSN(), PoolConfig{
			MaxIdleConnections:    o.MaxIdleConnections,
			MaxOpenConnections:    o.MaxOpenConnections,
			MaxConnectionLifeTime: o.MaxConnectionLifeTime,
		}, o.LogLevel)
		if oerr != nil {
			return nil, oerr
		}
		s, err = NewGormStore(db)
	case BackendMongoDB:
		if conns.MongoDB == nil {
			return nil, fmt.Errorf("mongodb backend selected without mongodb options")
		}
		client, cerr := conns.MongoDB.NewClient(ctx)
		if cerr != nil {
			return nil, cerr
		}
		s = NewMongoStore(client, conns.MongoDB.Database, opts.MongoCollection)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Infow("Blob store ready", "backend", s.Name())
	return s, nil
}
