package a2a

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Transcript blobs are CBOR-encoded and zstd-compressed once the encoding
// exceeds the threshold. A one-byte prefix records whether compression was
// applied.
const transcriptCompressThreshold = 1024

const (
	transcriptRaw  byte = 0
	transcriptZstd byte = 1
)

var (
	transcriptEnc, _     = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	transcriptZstdDec, _ = zstd.NewReader(nil)
	transcriptDecMode, _ = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
)

// transcriptEntry is the stored form of one routed message.
type transcriptEntry struct {
	Sender    string         `cbor:"1,keyasint"`
	Recipient string         `cbor:"2,keyasint,omitempty"`
	Content   any            `cbor:"3,keyasint,omitempty"`
	Metadata  map[string]any `cbor:"4,keyasint,omitempty"`
}

// EncodeTranscript serialises a message history into a compact archive blob.
func EncodeTranscript(history []Message) ([]byte, error) {
	entries := make([]transcriptEntry, len(history))
	for i, m := range history {
		entries[i] = transcriptEntry{
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Content:   m.Content,
			Metadata:  m.Metadata,
		}
	}

	payload, err := cbor.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("a2a: encode transcript: %w", err)
	}

	if len(payload) > transcriptCompressThreshold {
		compressed := transcriptEnc.EncodeAll(payload, make([]byte, 0, len(payload)))
		if len(compressed) < len(payload) {
			return append([]byte{transcriptZstd}, compressed...), nil
		}
	}
	return append([]byte{transcriptRaw}, payload...), nil
}

// DecodeTranscript restores a message history from an archive blob.
func DecodeTranscript(data []byte) ([]Message, error) {
	if len(data) == 0 {
		return nil, errors.New("a2a: empty transcript")
	}

	payload := data[1:]
	switch data[0] {
	case transcriptRaw:
	case transcriptZstd:
		var err error
		payload, err = transcriptZstdDec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("a2a: decompress transcript: %w", err)
		}
	default:
		return nil, fmt.Errorf("a2a: unknown transcript format 0x%x", data[0])
	}

	var entries []transcriptEntry
	if err := transcriptDecMode.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("a2a: decode transcript: %w", err)
	}

	history := make([]Message, len(entries))
	for i, e := range entries {
		history[i] = Message{
			Sender:    e.Sender,
			Recipient: e.Recipient,
			Content:   e.Content,
			Metadata:  e.Metadata,
		}
	}
	return history, nil
}

// Transcript archives the Protocol's full routed history.
func (p *Protocol) Transcript() ([]byte, error) {
	return EncodeTranscript(p.History())
}
