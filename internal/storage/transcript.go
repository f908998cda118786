package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/bookedby/convoqa/internal/models"
)

// transcriptCodec compresses transcript JSON before it hits the database.
// Transcripts dominate row size and compress extremely well, so they are
// stored as zstd-compressed JSON blobs.
type transcriptCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newTranscriptCodec() (*transcriptCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("storage: create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("storage: create zstd decoder: %w", err)
	}
	return &transcriptCodec{enc: enc, dec: dec}, nil
}

func (c *transcriptCodec) encode(turns []models.ConversationTurn) ([]byte, error) {
	raw, err := json.Marshal(turns)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal transcript: %w", err)
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *transcriptCodec) decode(blob []byte) ([]models.ConversationTurn, error) {
	raw, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: decompress transcript: %w", err)
	}
	var turns []models.ConversationTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("storage: unmarshal transcript: %w", err)
	}
	return turns, nil
}
