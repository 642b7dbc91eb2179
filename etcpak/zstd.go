package etcpak

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

var zstdCodec struct {
	once sync.Once
	dec  *zstd.Decoder
	err  error
}

// Supercompress wraps a texture file in a single zstd frame.
func Supercompress(data []byte, level zstd.EncoderLevel) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("etcpak: zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// IsSupercompressed reports whether data starts with a zstd frame.
func IsSupercompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Unwrap returns data unchanged unless it is zstd-compressed, in which case
// it returns the decompressed texture file.
func Unwrap(data []byte) ([]byte, error) {
	if !IsSupercompressed(data) {
		return data, nil
	}
	zstdCodec.once.Do(func() {
		zstdCodec.dec, zstdCodec.err = zstd.NewReader(nil)
	})
	if zstdCodec.err != nil {
		return nil, fmt.Errorf("etcpak: zstd decoder: %w", zstdCodec.err)
	}
	out, err := zstdCodec.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, newError(ErrShortBuffer, fmt.Sprintf("etcpak: zstd: %v", err))
	}
	return out, nil
}
