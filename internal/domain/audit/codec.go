package audit

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressThreshold is the size above which changes are compressed.
const DefaultCompressThreshold = 10 * 1024

// Codec compresses large change sets. Encoder and decoder are safe for
// concurrent EncodeAll/DecodeAll calls.
type Codec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewCodec creates a codec that compresses payloads larger than threshold
// bytes. A non-positive threshold uses DefaultCompressThreshold.
func NewCodec(threshold int) (*Codec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Codec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Pack moves oversized Changes into ChangesCompressed.
func (c *Codec) Pack(e *Entry) {
	e.CompressionAlgo = CompressionNone
	if len(e.Changes) <= c.threshold {
		return
	}
	e.ChangesCompressed = c.encoder.EncodeAll(e.Changes, nil)
	e.Changes = nil
	e.CompressionAlgo = CompressionZstd
}

// Unpack restores Changes of a compressed entry.
func (c *Codec) Unpack(e *Entry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := c.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	return nil
}
