// Package mongodb configures the MongoDB connection backing the mongo blob
// store.
package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kart-io/retrieval-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options describes either a full URI or host/port parts. The password is
// never serialised; set it through MONGODB_PASSWORD.
type Options struct {
	URI        string `json:"uri" mapstructure:"uri"`
	Host       string `json:"host" mapstructure:"host"`
	Port       int    `json:"port" mapstructure:"port"`
	Username   string `json:"username" mapstructure:"username"`
	Password   string `json:"-" mapstructure:"password"`
	Database   string `json:"database" mapstructure:"database"`
	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
	Direct     bool   `json:"direct" mapstructure:"direct"`

	MaxPoolSize            uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize            uint64        `json:"min-pool-size" mapstructure:"min-pool-size"`
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`
}

func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "retrieval",
		AuthSource:             "admin",
		MaxPoolSize:            32,
		MinPoolSize:            2,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 15 * time.Second,
	}
}

func (o *Options) String() string {
	pw := ""
	if o.Password != "" {
		pw = "***"
	}
	return fmt.Sprintf("mongodb{host=%s:%d user=%s password=%s db=%s}", o.Host, o.Port, o.Username, pw, o.Database)
}

// Complete reads the password from MONGODB_PASSWORD when unset.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}
	return nil
}

func (o *Options) Validate() error {
	switch {
	case o.URI == "" && o.Host == "":
		return fmt.Errorf("mongodb.uri or mongodb.host is required")
	case o.Database == "":
		return fmt.Errorf("mongodb.database is required")
	case o.MinPoolSize > o.MaxPoolSize:
		return fmt.Errorf("mongodb.min-pool-size (%d) exceeds max-pool-size (%d)", o.MinPoolSize, o.MaxPoolSize)
	}
	return nil
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.StringVar(&o.URI, p+"uri", o.URI, "MongoDB URI; overrides the host/port parts when set.")
	fs.StringVar(&o.Host, p+"host", o.Host, "MongoDB host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MongoDB port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "MongoDB user.")
	fs.StringVar(&o.Password, p+"password", o.Password, "MongoDB password. Prefer MONGODB_PASSWORD.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database holding the chunk blobs.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "Authentication database.")
	fs.StringVar(&o.ReplicaSet, p+"replica-set", o.ReplicaSet, "Replica set name.")
	fs.BoolVar(&o.Direct, p+"direct", o.Direct, "Connect directly to the host without discovery.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum pooled connections.")
	fs.Uint64Var(&o.MinPoolSize, p+"min-pool-size", o.MinPoolSize, "Minimum pooled connections.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Dial timeout.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Server selection timeout.")
}

// BuildURI returns opts.URI when set, otherwise assembles one from the
// parts. authSource is only emitted when it differs from "admin".
func BuildURI(opts *Options) string {
	if opts.URI != "" {
		return opts.URI
	}

	u := url.URL{Scheme: "mongodb", Host: opts.Host, Path: "/" + opts.Database}
	if opts.Port != 0 {
		u.Host += ":" + strconv.Itoa(opts.Port)
	}
	switch {
	case opts.Username != "" && opts.Password != "":
		u.User = url.UserPassword(opts.Username, opts.Password)
	case opts.Username != "":
		u.User = url.User(opts.Username)
	}

	q := url.Values{}
	if opts.AuthSource != "" && opts.AuthSource != "admin" {
		q.Set("authSource", opts.AuthSource)
	}
	if opts.ReplicaSet != "" {
		q.Set("replicaSet", opts.ReplicaSet)
	}
	if opts.Direct {
		q.Set("directConnection", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewClient connects and pings the primary, disconnecting on a failed ping.
func (o *Options) NewClient(ctx context.Context) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, mongooptions.Client().
		ApplyURI(BuildURI(o)).
		SetMaxPoolSize(o.MaxPoolSize).
		SetMinPoolSize(o.MinPoolSize).
		SetConnectTimeout(o.ConnectTimeout).
		SetServerSelectionTimeout(o.ServerSelectionTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	return client, nil
}
