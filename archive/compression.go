package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression of archived runs.
type Compression uint8

const (
	// CompressionNone stores blocks as they are.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd block compression.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps a configuration name to a compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}

	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}

	dec, _ := zstd.NewReader(nil)

	return dec
}

// Block layout: [raw size uint32][stored size uint32][data].
// A stored size of 0 marks an uncompressed block.
const blockHeaderSize = 8

func compressBlock(data []byte, c Compression) ([]byte, error) {
	var packed []byte

	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))

		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}

		packed = buf[:n]
	case CompressionZstd:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	out := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))

	// Keep the raw bytes when compression does not pay off.
	if len(packed) == 0 || len(packed) >= len(data) {
		return append(out, data...), nil
	}

	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))

	return append(out, packed...), nil
}

func decompressBlock(raw uint32, packed []byte, c Compression) ([]byte, error) {
	out := make([]byte, raw)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(packed, out)
		if err != nil {
			return nil, err
		}

		if uint32(n) != raw {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}

		return out, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(packed, out[:0])
		if err != nil {
			return nil, err
		}

		if uint32(len(decoded)) != raw {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}

		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed block without compression", ErrCorrupt)
	}
}

// blockWriter buffers writes and emits one compressed block per blockSize bytes.
type blockWriter struct {
	w           io.Writer
	compression Compression
	blockSize   int
	buf         *bytes.Buffer
	written     int64
}

func newBlockWriter(w io.Writer, c Compression, blockSize int) *blockWriter {
	return &blockWriter{
		w:           w,
		compression: c,
		blockSize:   blockSize,
		buf:         bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

func (b *blockWriter) Write(p []byte) (int, error) {
	total := 0

	for len(p) > 0 {
		space := b.blockSize - b.buf.Len()
		if space <= 0 {
			if err := b.Flush(); err != nil {
				return total, err
			}

			space = b.blockSize
		}

		n, _ := b.buf.Write(p[:min(len(p), space)])
		total += n
		p = p[n:]
	}

	return total, nil
}

// Flush writes the buffered bytes as one block.
func (b *blockWriter) Flush() error {
	if b.buf.Len() == 0 {
		return nil
	}

	block, err := compressBlock(b.buf.Bytes(), b.compression)
	if err != nil {
		return err
	}

	n, err := b.w.Write(block)
	b.written += int64(n)

	if err != nil {
		return err
	}

	b.buf.Reset()

	return nil
}

// decodeBlocks decompresses every block in data.
func decodeBlocks(data []byte, c Compression) ([]byte, error) {
	var out []byte

	for len(data) > 0 {
		if len(data) < blockHeaderSize {
			return nil, fmt.Errorf("%w: truncated block header", ErrCorrupt)
		}

		raw := binary.LittleEndian.Uint32(data[0:])
		stored := binary.LittleEndian.Uint32(data[4:])
		data = data[blockHeaderSize:]

		size := stored
		if stored == 0 {
			size = raw
		}

		if uint32(len(data)) < size {
			return nil, fmt.Errorf("%w: block extends beyond data", ErrCorrupt)
		}

		if stored == 0 {
			out = append(out, data[:raw]...)
		} else {
			block, err := decompressBlock(raw, data[:stored], c)
			if err != nil {
				return nil, errors.Join(ErrCorrupt, err)
			}

			out = append(out, block...)
		}

		data = data[size:]
	}

	return out, nil
}
