package ws

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
)

// websocketGUID is the fixed accept-key derivation constant from RFC 6455 §1.3.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var ErrHandshakeFailed = errors.New("ws: handshake failed")

// NewKey returns a fresh Sec-WebSocket-Key: 16 random bytes, base64-encoded.
func NewKey() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("ws: handshake nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// AcceptKey derives the Sec-WebSocket-Accept value the server must echo
// for key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// BuildUpgradeRequest serialises the minimal HTTP/1.1 upgrade request for
// path against host. host carries a port only when it is not the scheme
// default.
func BuildUpgradeRequest(host, path, key string) []byte {
	var b strings.Builder
	b.WriteString("GET " + path + " HTTP/1.1\r\n")
	b.WriteString("Host: " + host + "\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Key: " + key + "\r\n")
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ReadUpgradeResponse reads the status line and headers of the server's
// handshake response. It performs no validation; see ValidateUpgradeResponse.
func ReadUpgradeResponse(r *bufio.Reader) (string, textproto.MIMEHeader, error) {
	tp := textproto.NewReader(r)
	status, err := tp.ReadLine()
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading status line: %v", ErrHandshakeFailed, err)
	}
	hdr, err := tp.ReadMIMEHeader()
	if err != nil {
		return "", nil, fmt.Errorf("%w: reading headers after %q: %v", ErrHandshakeFailed, status, err)
	}
	return status, hdr, nil
}

// ValidateUpgradeResponse checks that the server accepted the upgrade for the
// key we sent. The accept comparison is exact: base64 is case-sensitive.
func ValidateUpgradeResponse(status string, hdr textproto.MIMEHeader, key string) error {
	if !strings.HasPrefix(status, "HTTP/1.1 101") {
		return fmt.Errorf("%w: unexpected status line %q", ErrHandshakeFailed, status)
	}
	accept := hdr.Get("Sec-WebSocket-Accept")
	if accept == "" {
		return fmt.Errorf("%w: missing Sec-WebSocket-Accept header in %v", ErrHandshakeFailed, hdr)
	}
	if want := AcceptKey(key); accept != want {
		return fmt.Errorf("%w: Sec-WebSocket-Accept %q, want %q", ErrHandshakeFailed, accept, want)
	}
	return nil
}
