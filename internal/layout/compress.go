package layout

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/annel0/voxel-editor/internal/world"
	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxLayoutSize))
	})
	return encoder, decoder, codecErr
}

// IsCompressed проверяет сигнатуру кадра zstd
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Compress сжимает данные zstd
func Compress(data []byte) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress распаковывает кадр zstd
func Decompress(data []byte) ([]byte, error) {
	_, dec, err := codecs()
	if err != nil {
		return nil, err
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// DecodeAuto разбирает раскладку, предварительно распаковав её, если она сжата
func DecodeAuto(data []byte) ([]world.Record, error) {
	if IsCompressed(data) {
		raw, err := Decompress(data)
		if err != nil {
			return nil, &world.MalformedRecordError{Index: -1, Reason: err.Error()}
		}
		data = raw
	}
	return Decode(data)
}
