// Package audit encodes device-event payloads for the admission audit trail.
package audit

import (
	"encoding/base64"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var (
	enc *zstd.Encoder
	dec *zstd.Decoder
)

func init() {
	var err error
	if enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
		panic(err)
	}
	if dec, err = zstd.NewReader(nil); err != nil {
		panic(err)
	}
}

// EncodePayload encodes a device event as JSON, compresses and base64-url
// encodes it for storage inside an audit record.
func EncodePayload(v any) (string, error) {
	s, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	b := enc.EncodeAll(s, make([]byte, 0, len(s)))
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodePayload reverses EncodePayload, returning the raw JSON bytes.
func DecodePayload(in string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(in)
	if err != nil {
		return []byte{}, err
	}
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return []byte{}, err
	}
	return out, nil
}
