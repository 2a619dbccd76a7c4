// Package json is the codec for chunk blobs, API bodies and provider
// payloads. sonic's std-compatible config is used where its JIT runs
// (amd64, arm64); other platforms get encoding/json.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

type RawMessage = stdjson.RawMessage

type Encoder interface {
	Encode(v interface{}) error
}

type Decoder interface {
	Decode(v interface{}) error
}

type codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

type sonicCodec struct{ api sonic.API }

func (c sonicCodec) Marshal(v interface{}) ([]byte, error)      { return c.api.Marshal(v) }
func (c sonicCodec) Unmarshal(data []byte, v interface{}) error { return c.api.Unmarshal(data, v) }
func (c sonicCodec) NewEncoder(w io.Writer) Encoder             { return c.api.NewEncoder(w) }
func (c sonicCodec) NewDecoder(r io.Reader) Decoder             { return c.api.NewDecoder(r) }

type stdCodec struct{}

func (stdCodec) Marshal(v interface{}) ([]byte, error)      { return stdjson.Marshal(v) }
func (stdCodec) Unmarshal(data []byte, v interface{}) error { return stdjson.Unmarshal(data, v) }
func (stdCodec) NewEncoder(w io.Writer) Encoder             { return stdjson.NewEncoder(w) }
func (stdCodec) NewDecoder(r io.Reader) Decoder             { return stdjson.NewDecoder(r) }

var active = pick(runtime.GOARCH)

func pick(arch string) codec {
	if arch == "amd64" || arch == "arm64" {
		return sonicCodec{api: sonic.ConfigStd}
	}
	return stdCodec{}
}

func Marshal(v interface{}) ([]byte, error)      { return active.Marshal(v) }
func Unmarshal(data []byte, v interface{}) error { return active.Unmarshal(data, v) }
func NewEncoder(w io.Writer) Encoder             { return active.NewEncoder(w) }
func NewDecoder(r io.Reader) Decoder             { return active.NewDecoder(r) }
