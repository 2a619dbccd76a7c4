// Package http configures the gin HTTP listener of the retrieval API.
package http

import (
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kart-io/retrieval-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const defaultShutdownTimeout = 15 * time.Second

// Options holds listener settings. WriteTimeout must cover a synchronous
// index of a large document and a full chat generation.
type Options struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	Mode            string        `json:"mode" mapstructure:"mode"`
	ReadTimeout     time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout     time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	// MaxUploadSize caps a document upload body in bytes.
	MaxUploadSize int64 `json:"max-upload-size" mapstructure:"max-upload-size"`
}

func NewOptions() *Options {
	return &Options{
		Addr:            ":8100",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: defaultShutdownTimeout,
		MaxUploadSize:   50 << 20,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "Listen address.")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode: debug, release or test.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Time allowed to read a whole request, upload included.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Time allowed to write a response.")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "Keep-alive idle timeout.")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Grace period for in-flight requests on shutdown.")
	fs.Int64Var(&o.MaxUploadSize, p+"max-upload-size", o.MaxUploadSize, "Largest accepted document upload in bytes.")
}

func (o *Options) Complete() error {
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}

func (o *Options) Validate() error {
	switch {
	case o.Addr == "":
		return fmt.Errorf("http.addr is required")
	case o.Mode != gin.DebugMode && o.Mode != gin.ReleaseMode && o.Mode != gin.TestMode:
		return fmt.Errorf("http.mode %q is not one of debug, release, test", o.Mode)
	case o.ReadTimeout <= 0 || o.WriteTimeout <= 0:
		return fmt.Errorf("http.read-timeout and http.write-timeout must be positive")
	case o.MaxUploadSize <= 0:
		return fmt.Errorf("http.max-upload-size must be positive")
	}
	return nil
}

// NewServer returns an unstarted server for h using these settings.
func (o *Options) NewServer(h nethttp.Handler) *nethttp.Server {
	return &nethttp.Server{
		Addr:         o.Addr,
		Handler:      h,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		IdleTimeout:  o.IdleTimeout,
	}
}
