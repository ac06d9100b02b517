// Package a2a implements the agent communication layer: a dispatch engine
// that routes messages between named endpoints and drives each conversation
// until it quiesces, and a minimal WebSocket transport client for reaching
// the remote tool-invocation service.
package a2a

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/relaymesh/a2a-go-sdk/ws"
)

var (
	ErrConnectFailed           = errors.New("a2a: connect failed")
	ErrInvalidResponseEncoding = errors.New("a2a: invalid response encoding")
	ErrMalformedEnvelope       = errors.New("a2a: malformed response envelope")
)

// toolsPath is the fixed sub-path the tool service serves its socket on.
const toolsPath = "/ws/tools"

// ToolClient performs single request/response exchanges with the tool
// service. Every call dials, upgrades, exchanges one frame pair, and tears
// the connection down — no pooling, no retry, no cross-call state. A single
// ToolClient is safe to use from multiple goroutines.
type ToolClient struct {
	cfg        Config
	dialAddr   string // host:port to dial
	hostHeader string // Host header value; default ports are omitted
	serverName string // TLS SNI / certificate hostname
	path       string // upgrade request target
	secure     bool   // wss
}

// NewToolClient validates cfg and resolves the WebSocket target from its
// base URL (http→ws, https→wss, fixed tools sub-path appended).
func NewToolClient(cfg Config) (*ToolClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("a2a: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	var secure bool
	var defaultPort string
	switch u.Scheme {
	case "http":
		secure, defaultPort = false, "80"
	case "https":
		secure, defaultPort = true, "443"
	default:
		return nil, fmt.Errorf("a2a: base URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("a2a: base URL %q has no host", cfg.BaseURL)
	}

	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	hostHeader := u.Hostname()
	if port != defaultPort {
		hostHeader = net.JoinHostPort(u.Hostname(), port)
	}

	return &ToolClient{
		cfg:        cfg,
		dialAddr:   net.JoinHostPort(u.Hostname(), port),
		hostHeader: hostHeader,
		serverName: u.Hostname(),
		path:       strings.TrimRight(u.Path, "/") + toolsPath,
		secure:     secure,
	}, nil
}

// Call sends payload as one JSON text frame and returns the decoded
// {status_code, body} response envelope. Each I/O step (dial, handshake
// read, frame read/write) is individually bounded by the configured timeout;
// cancelling ctx closes the connection promptly. The connection is released
// on every exit path.
func (c *ToolClient) Call(ctx context.Context, payload any) (int, map[string]any, error) {
	request, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("a2a: encode request: %w", err)
	}

	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	raw, err := dialer.DialContext(ctx, "tcp", c.dialAddr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, c.dialAddr, err)
	}

	conn := net.Conn(raw)
	if c.secure {
		conn = tls.Client(raw, &tls.Config{ServerName: c.serverName})
	}

	// Map external cancellation to closing the socket so blocked reads
	// return promptly.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	upgraded := false
	defer func() {
		if upgraded {
			if frame, err := ws.EncodeCloseFrame(); err == nil {
				conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
				conn.Write(frame) // best effort
			}
		}
		conn.Close()
	}()

	if tc, ok := conn.(*tls.Conn); ok {
		conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
		if err := tc.HandshakeContext(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: tls %s: %v", ErrConnectFailed, c.dialAddr, err)
		}
	}

	key, err := ws.NewKey()
	if err != nil {
		return 0, nil, err
	}

	conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	if _, err := conn.Write(ws.BuildUpgradeRequest(c.hostHeader, c.path, key)); err != nil {
		return 0, nil, fmt.Errorf("%w: writing upgrade request to %s: %v", ws.ErrHandshakeFailed, c.dialAddr, err)
	}

	br := bufio.NewReader(conn)
	conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	status, hdr, err := ws.ReadUpgradeResponse(br)
	if err != nil {
		return 0, nil, fmt.Errorf("%w (host %s, path %s)", err, c.hostHeader, c.path)
	}
	if err := ws.ValidateUpgradeResponse(status, hdr, key); err != nil {
		return 0, nil, fmt.Errorf("%w (host %s, path %s)", err, c.hostHeader, c.path)
	}
	upgraded = true
	slog.Debug("tool socket open", "host", c.hostHeader, "path", c.path)

	frame, err := ws.EncodeTextFrame(request)
	if err != nil {
		return 0, nil, err
	}
	conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	if _, err := conn.Write(frame); err != nil {
		return 0, nil, fmt.Errorf("a2a: writing request frame to %s: %w", c.dialAddr, err)
	}

	conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	response, err := ws.ReadTextFrame(br)
	if err != nil {
		return 0, nil, fmt.Errorf("%w (host %s, path %s)", err, c.hostHeader, c.path)
	}

	return decodeEnvelope(response)
}

// decodeEnvelope enforces the {status_code, body} response contract:
// status_code must be an integer and body an object.
func decodeEnvelope(raw []byte) (int, map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidResponseEncoding, err)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return 0, nil, fmt.Errorf("%w: response is not an object", ErrMalformedEnvelope)
	}

	rawStatus, ok := obj["status_code"]
	if !ok {
		return 0, nil, fmt.Errorf("%w: missing status_code", ErrMalformedEnvelope)
	}
	statusF, ok := rawStatus.(float64)
	if !ok || statusF != math.Trunc(statusF) {
		return 0, nil, fmt.Errorf("%w: status_code %v is not an integer", ErrMalformedEnvelope, rawStatus)
	}

	rawBody, ok := obj["body"]
	if !ok {
		return 0, nil, fmt.Errorf("%w: missing body", ErrMalformedEnvelope)
	}
	body, ok := rawBody.(map[string]any)
	if !ok {
		return 0, nil, fmt.Errorf("%w: body is not an object", ErrMalformedEnvelope)
	}

	return int(statusF), body, nil
}
