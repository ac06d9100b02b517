// Package ws implements the client side of the WebSocket protocol (RFC 6455)
// directly over a byte stream: the upgrade handshake and framing for
// single-frame text exchanges. The SDK's tool transport deliberately carries
// no WebSocket library dependency for its own wire traffic.
package ws

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opcodes the transport deals in. The client only ever sends unfragmented
// text frames and a final close frame.
const (
	OpText  byte = 0x1
	OpClose byte = 0x8
)

const (
	finBit  = 0x80
	maskBit = 0x80

	len16 = 126 // marker: 16-bit extended length follows
	len64 = 127 // marker: 64-bit extended length follows

	maxInline = 125
	max16     = 1 << 16
)

// MaxPayload bounds the announced length of a received frame. Any conforming
// tool envelope fits in a fraction of this; the bound exists so a hostile
// 64-bit length cannot drive the allocator.
const MaxPayload = 1 << 27 // 128 MiB

var (
	ErrIncompleteFrame = errors.New("ws: incomplete frame")
	ErrClosedByPeer    = errors.New("ws: connection closed by peer")
	ErrUnexpectedFrame = errors.New("ws: unexpected frame type")
	ErrFrameTooLarge   = errors.New("ws: frame payload too large")
)

// FrameHeader describes one received frame up to, but not including, its
// payload bytes.
type FrameHeader struct {
	Opcode  byte
	Fin     bool
	Masked  bool
	Length  uint64
	MaskKey [4]byte
}

// EncodeTextFrame builds a masked, unfragmented text frame around payload.
// A fresh random mask key is drawn on every call, so two encodings of the
// same payload differ on the wire.
func EncodeTextFrame(payload []byte) ([]byte, error) {
	key, err := newMaskKey()
	if err != nil {
		return nil, err
	}
	return encodeFrame(OpText, payload, key), nil
}

// EncodeCloseFrame builds a masked close frame with an empty payload.
func EncodeCloseFrame() ([]byte, error) {
	key, err := newMaskKey()
	if err != nil {
		return nil, err
	}
	return encodeFrame(OpClose, nil, key), nil
}

func newMaskKey() ([4]byte, error) {
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("ws: mask key: %w", err)
	}
	return key, nil
}

// encodeFrame assembles FIN|opcode, the 7/16/64-bit payload length, the mask
// key, and the masked payload.
func encodeFrame(opcode byte, payload []byte, key [4]byte) []byte {
	n := len(payload)

	var header []byte
	switch {
	case n <= maxInline:
		header = []byte{finBit | opcode, maskBit | byte(n)}
	case n < max16:
		header = make([]byte, 4)
		header[0] = finBit | opcode
		header[1] = maskBit | len16
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = finBit | opcode
		header[1] = maskBit | len64
		binary.BigEndian.PutUint64(header[2:], uint64(n))
	}

	out := make([]byte, 0, len(header)+4+n)
	out = append(out, header...)
	out = append(out, key[:]...)
	out = append(out, payload...)
	maskBytes(out[len(header)+4:], key)
	return out
}

// maskBytes XORs b in place with the mask key, cycling every four bytes.
func maskBytes(b []byte, key [4]byte) {
	for i := range b {
		b[i] ^= key[i%4]
	}
}

// ReadFrameHeader reads and decodes one frame header from r. Servers must
// not mask, but a set mask bit is still honoured so the payload can be
// recovered from a nonconforming peer.
func ReadFrameHeader(r io.Reader) (FrameHeader, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return FrameHeader{}, incomplete("header", err)
	}

	h := FrameHeader{
		Fin:    b[0]&finBit != 0,
		Opcode: b[0] & 0x0f,
		Masked: b[1]&maskBit != 0,
	}

	switch n := b[1] & 0x7f; n {
	case len16:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return FrameHeader{}, incomplete("extended length", err)
		}
		h.Length = uint64(binary.BigEndian.Uint16(ext[:]))
	case len64:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return FrameHeader{}, incomplete("extended length", err)
		}
		h.Length = binary.BigEndian.Uint64(ext[:])
	default:
		h.Length = uint64(n)
	}

	if h.Masked {
		if _, err := io.ReadFull(r, h.MaskKey[:]); err != nil {
			return FrameHeader{}, incomplete("mask key", err)
		}
	}

	return h, nil
}

// ReadFramePayload reads exactly h.Length payload bytes, unmasking them when
// the header carried a mask key.
func ReadFramePayload(r io.Reader, h FrameHeader) ([]byte, error) {
	if h.Length > MaxPayload {
		return nil, fmt.Errorf("%w: announced length %d", ErrFrameTooLarge, h.Length)
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, incomplete("payload", err)
	}
	if h.Masked {
		maskBytes(payload, h.MaskKey)
	}
	return payload, nil
}

// ReadTextFrame reads one frame from r and requires it to be text. A close
// frame is reported as ErrClosedByPeer, anything else as ErrUnexpectedFrame.
func ReadTextFrame(r io.Reader) ([]byte, error) {
	h, err := ReadFrameHeader(r)
	if err != nil {
		return nil, err
	}
	switch h.Opcode {
	case OpText:
	case OpClose:
		return nil, ErrClosedByPeer
	default:
		return nil, fmt.Errorf("%w: opcode 0x%x", ErrUnexpectedFrame, h.Opcode)
	}
	return ReadFramePayload(r, h)
}

func incomplete(section string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIncompleteFrame, section, err)
}
