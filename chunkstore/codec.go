package chunkstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression applied to a chunk payload.
type Codec uint8

const (
	// CodecNone stores payloads raw.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression.
	CodecLZ4 Codec = 1
	// CodecZstd uses Zstandard.
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// ParseCodec is the inverse of Codec.String.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return CodecNone, fmt.Errorf("chunkstore: unknown codec %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// maxExpansion bounds the raw size a stored payload can decode to. An LZ4
// sequence yields at most 255 bytes per input byte; a zstd RLE block turns
// four bytes into at most 128 KiB.
var maxExpansion = map[Codec]int{
	CodecLZ4:  255,
	CodecZstd: 1 << 15,
}

// compress returns the stored form of data and the codec actually used.
func compress(data []byte, codec Codec) ([]byte, Codec, error) {
	if codec == CodecNone || len(data) == 0 {
		return data, CodecNone, nil
	}

	var out []byte
	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, CodecNone, err
		}
		out = buf[:n]
	case CodecZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, CodecNone, err
		}
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, CodecNone, fmt.Errorf("chunkstore: unknown codec %d", codec)
	}

	// lz4 reports incompressible input as n == 0.
	if len(out) == 0 || float64(len(out)) > float64(len(data))*0.9 {
		return data, CodecNone, nil
	}
	return out, codec, nil
}

func decompress(stored []byte, codec Codec, rawLen int) ([]byte, error) {
	if limit, ok := maxExpansion[codec]; ok && rawLen > len(stored)*limit {
		return nil, fmt.Errorf("%w: %s payload of %d bytes cannot expand to %d bytes",
			ErrFormat, codec, len(stored), rawLen)
	}
	switch codec {
	case CodecNone:
		if len(stored) != rawLen {
			return nil, fmt.Errorf("%w: raw payload has %d bytes, want %d", ErrFormat, len(stored), rawLen)
		}
		return stored, nil
	case CodecLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrFormat, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrFormat, n, rawLen)
		}
		return out, nil
	case CodecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(stored, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrFormat, err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrFormat, len(out), rawLen)
		}
		return out, nil
	default:
		return nil, errors.Join(ErrFormat, fmt.Errorf("unknown codec %d", codec))
	}
}
