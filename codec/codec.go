// Package codec encodes sync messages with the SCALE codec.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/spacemeshos/go-scale"
)

// EncodeTo encodes value to a writer stream.
func EncodeTo(w io.Writer, value scale.Encodable) (int, error) {
	n, err := value.EncodeScale(scale.NewEncoder(w))
	if err != nil {
		return n, fmt.Errorf("encode scale: %w", err)
	}
	return n, nil
}

// DecodeFrom decodes a value using data from a reader stream.
func DecodeFrom(r io.Reader, value scale.Decodable) (int, error) {
	n, err := value.DecodeScale(scale.NewDecoder(r))
	if err != nil {
		return n, fmt.Errorf("decode scale: %w", err)
	}
	return n, nil
}

var encoderPool = sync.Pool{
	New: func() any {
		b := new(bytes.Buffer)
		b.Grow(64)
		return b
	},
}

func getEncoderBuffer() *bytes.Buffer {
	return encoderPool.Get().(*bytes.Buffer)
}

func putEncoderBuffer(b *bytes.Buffer) {
	b.Reset()
	encoderPool.Put(b)
}

// Encode value to a byte buffer.
func Encode(value scale.Encodable) ([]byte, error) {
	b := getEncoderBuffer()
	defer putEncoderBuffer(b)
	if _, err := EncodeTo(b, value); err != nil {
		return nil, err
	}
	return bytes.Clone(b.Bytes()), nil
}

// Decode value from a byte buffer.
func Decode(buf []byte, value scale.Decodable) error {
	if _, err := DecodeFrom(bytes.NewReader(buf), value); err != nil {
		return fmt.Errorf("decode from buffer: %w", err)
	}
	return nil
}
