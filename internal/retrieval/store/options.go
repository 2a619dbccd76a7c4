package store

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/kart-io/retrieval-x/pkg/options"
)

// Backend names accepted by storage.backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
)

var backends = []string{BackendMemory, BackendRedis, BackendSQLite, BackendMySQL, BackendPostgres, BackendMongoDB}

var _ options.IOptions = (*Options)(nil)

// Options selects and tunes the blob backend. Connection settings come from
// the redis, mysql, postgres and mongodb sections.
type Options struct {
	Backend         string `json:"backend" mapstructure:"backend"`
	SQLitePath      string `json:"sqlite-path" mapstructure:"sqlite-path"`
	RedisNamespace  string `json:"redis-namespace" mapstructure:"redis-namespace"`
	MongoCollection string `json:"mongo-collection" mapstructure:"mongo-collection"`
}

func NewOptions() *Options {
	return &Options{
		Backend:         BackendSQLite,
		SQLitePath:      "retrieval.db",
		RedisNamespace:  DefaultRedisNamespace,
		MongoCollection: DefaultMongoCollection,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "storage."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, fmt.Sprintf("Blob store backend, one of %v", backends))
	fs.StringVar(&o.SQLitePath, p+"sqlite-path", o.SQLitePath, "SQLite database file for the sqlite backend")
	fs.StringVar(&o.RedisNamespace, p+"redis-namespace", o.RedisNamespace, "Key namespace for the redis backend")
	fs.StringVar(&o.MongoCollection, p+"mongo-collection", o.MongoCollection, "Collection for the mongodb backend")
}

func (o *Options) Complete() error {
	if o.Backend == "" {
		o.Backend = BackendSQLite
	}
	return nil
}

func (o *Options) Validate() error {
	if !slices.Contains(backends, o.Backend) {
		return fmt.Errorf("storage.backend must be one of %v, got %q", backends, o.Backend)
	}
	if o.Backend == BackendSQLite && o.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite-path is required for the sqlite backend")
	}
	return nil
}
