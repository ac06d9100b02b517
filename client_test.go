package a2a

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	gws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/a2a-go-sdk/toolsvc"
	"github.com/relaymesh/a2a-go-sdk/wire"
	"github.com/relaymesh/a2a-go-sdk/ws"
)

// startToolServer serves a toolsvc over WebSocket using gobwas/ws as an
// independent server-side implementation the hand-rolled client must
// interoperate with.
func startToolServer(t *testing.T, svc *toolsvc.Service) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				if _, err := gws.Upgrade(conn); err != nil {
					return
				}
				for {
					data, err := wsutil.ReadClientText(conn)
					if err != nil {
						return
					}
					status, body := svc.HandleRequest(data)
					resp, _ := json.Marshal(wire.Envelope{StatusCode: status, Body: body})
					if err := wsutil.WriteServerText(conn, resp); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().String()
}

// startRawServer accepts one connection and hands it to serve after reading
// and upgrading (or not) as serve sees fit.
func startRawServer(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()

	return ln.Addr().String()
}

// upgradeByHand performs a minimal correct server-side handshake without any
// library, so failure-mode tests control every byte after it.
func upgradeByHand(t *testing.T, conn net.Conn) {
	t.Helper()
	br := bufio.NewReader(conn)
	var key string
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		const prefix = "Sec-WebSocket-Key: "
		if len(line) > len(prefix) && line[:len(prefix)] == prefix {
			key = line[len(prefix) : len(line)-2]
		}
	}
	require.NotEmpty(t, key)
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + ws.AcceptKey(key) + "\r\n\r\n"
	_, err := conn.Write([]byte(resp))
	require.NoError(t, err)
	// Consume the client's request frame before replying.
	h, err := ws.ReadFrameHeader(br)
	require.NoError(t, err)
	_, err = ws.ReadFramePayload(br, h)
	require.NoError(t, err)
}

func newTestClient(t *testing.T, addr string) *ToolClient {
	t.Helper()
	client, err := NewToolClient(Config{BaseURL: "http://" + addr, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return client
}

func TestNewToolClientTargetResolution(t *testing.T) {
	cases := []struct {
		baseURL    string
		dialAddr   string
		hostHeader string
		path       string
		secure     bool
	}{
		{"http://example.com", "example.com:80", "example.com", "/ws/tools", false},
		{"http://example.com:8000", "example.com:8000", "example.com:8000", "/ws/tools", false},
		{"https://example.com", "example.com:443", "example.com", "/ws/tools", true},
		{"https://example.com:8443/api", "example.com:8443", "example.com:8443", "/api/ws/tools", true},
		{"http://example.com/base/", "example.com:80", "example.com", "/base/ws/tools", false},
	}

	for _, tc := range cases {
		client, err := NewToolClient(Config{BaseURL: tc.baseURL})
		require.NoError(t, err, tc.baseURL)
		assert.Equal(t, tc.dialAddr, client.dialAddr, tc.baseURL)
		assert.Equal(t, tc.hostHeader, client.hostHeader, tc.baseURL)
		assert.Equal(t, tc.path, client.path, tc.baseURL)
		assert.Equal(t, tc.secure, client.secure, tc.baseURL)
	}

	_, err := NewToolClient(Config{BaseURL: "ftp://example.com"})
	require.Error(t, err)
	_, err = NewToolClient(Config{})
	require.Error(t, err)
}

func TestCallEndToEnd(t *testing.T) {
	addr := startToolServer(t, toolsvc.DefaultService())
	client := newTestClient(t, addr)

	status, body, err := client.Call(context.Background(), wire.Request{
		Action:    wire.ActionInvokeTool,
		Name:      "calc_shipping",
		Arguments: map[string]any{"weight": 2.0, "distance": 10.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, wire.StatusSuccess, body["status"])
	assert.Equal(t, 12.0, body["data"])
}

func TestCallFixedEnvelope(t *testing.T) {
	addr := startRawServer(t, func(conn net.Conn) {
		upgradeByHand(t, conn)
		payload := []byte(`{"status_code":200,"body":{"status":"00","data":42}}`)
		frame := make([]byte, 0, len(payload)+2)
		frame = append(frame, 0x81, byte(len(payload)))
		frame = append(frame, payload...)
		conn.Write(frame)
	})
	client := newTestClient(t, addr)

	status, body, err := client.Call(context.Background(), wire.Request{
		Action:    wire.ActionInvokeTool,
		Name:      "x",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, map[string]any{"status": "00", "data": 42.0}, body)
}

func TestListToolsAndInvokeTool(t *testing.T) {
	addr := startToolServer(t, toolsvc.DefaultService())
	client := newTestClient(t, addr)

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Equal(t, "find_product", tools[0].Name)

	data, err := client.InvokeTool(context.Background(), "find_product", map[string]any{"query": "SKU-MN03"})
	require.NoError(t, err)
	results := data.([]any)
	require.Len(t, results, 1)
	product := results[0].(map[string]any)
	assert.Equal(t, "27in Monitor", product["name"])

	// Business failure surfaces as an error from the typed helper.
	_, err = client.InvokeTool(context.Background(), "reserve_stock", map[string]any{"sku": "SKU-HS04", "quantity": 1})
	require.Error(t, err)
}

func TestCallConnectFailed(t *testing.T) {
	// Grab a port that is immediately closed again.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := newTestClient(t, addr)
	_, _, err = client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
	require.ErrorIs(t, err, ErrConnectFailed)
}

func TestCallHandshakeRejected(t *testing.T) {
	addr := startRawServer(t, func(conn net.Conn) {
		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n"))
	})
	client := newTestClient(t, addr)

	_, _, err := client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
	require.ErrorIs(t, err, ws.ErrHandshakeFailed)
	assert.Contains(t, err.Error(), "403", "handshake failures carry the offending status line")
}

func TestCallBadAcceptKey(t *testing.T) {
	addr := startRawServer(t, func(conn net.Conn) {
		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\n" +
			"Upgrade: websocket\r\n" +
			"Connection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: AAAAAAAAAAAAAAAAAAAAAAAAAAA=\r\n\r\n"))
	})
	client := newTestClient(t, addr)

	_, _, err := client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
	require.ErrorIs(t, err, ws.ErrHandshakeFailed)
}

func TestCallServerCloseFrame(t *testing.T) {
	addr := startRawServer(t, func(conn net.Conn) {
		upgradeByHand(t, conn)
		conn.Write([]byte{0x88, 0x00}) // close, empty reason
	})
	client := newTestClient(t, addr)

	_, _, err := client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
	require.ErrorIs(t, err, ws.ErrClosedByPeer)
}

func TestCallTruncatedFrame(t *testing.T) {
	addr := startRawServer(t, func(conn net.Conn) {
		upgradeByHand(t, conn)
		conn.Write([]byte{0x81, 10, 'h', 'a', 'l', 'f'}) // announces 10, sends 4
	})
	client := newTestClient(t, addr)

	_, _, err := client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
	require.ErrorIs(t, err, ws.ErrIncompleteFrame)
}

func TestCallInvalidResponseEncoding(t *testing.T) {
	addr := startRawServer(t, func(conn net.Conn) {
		upgradeByHand(t, conn)
		payload := []byte("not json at all")
		conn.Write(append([]byte{0x81, byte(len(payload))}, payload...))
	})
	client := newTestClient(t, addr)

	_, _, err := client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
	require.ErrorIs(t, err, ErrInvalidResponseEncoding)
}

func TestCallMalformedEnvelope(t *testing.T) {
	cases := []string{
		`[1,2,3]`,                            // not an object
		`{"body":{"status":"00"}}`,           // missing status_code
		`{"status_code":200}`,                // missing body
		`{"status_code":200.5,"body":{}}`,    // non-integer status
		`{"status_code":200,"body":"oops"}`,  // body not an object
	}

	for _, payload := range cases {
		addr := startRawServer(t, func(conn net.Conn) {
			upgradeByHand(t, conn)
			conn.Write(append([]byte{0x81, byte(len(payload))}, payload...))
		})
		client := newTestClient(t, addr)

		_, _, err := client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
		require.ErrorIs(t, err, ErrMalformedEnvelope, payload)
	}
}

func TestCallStepTimeout(t *testing.T) {
	accepted := make(chan struct{})
	addr := startRawServer(t, func(conn net.Conn) {
		close(accepted)
		// Never respond to the upgrade request.
		io.Copy(io.Discard, conn)
	})

	client, err := NewToolClient(Config{BaseURL: "http://" + addr, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, _, err = client.Call(context.Background(), wire.Request{Action: wire.ActionListTools})
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
	<-accepted
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.True(t, netErr.Timeout())
	}
}

func TestCallContextCancellation(t *testing.T) {
	addr := startRawServer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn) // accept, then stall forever
	})

	client, err := NewToolClient(Config{BaseURL: "http://" + addr, Timeout: 30 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err = client.Call(ctx, wire.Request{Action: wire.ActionListTools})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must close the connection promptly")
}
