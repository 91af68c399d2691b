package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gosignal/internal/protocol"
	"github.com/Tyrowin/gosignal/internal/signaling"
)

const (
	testOrigin  = "http://localhost:8080"
	readTimeout = 2 * time.Second
)

// startTestServer runs a Server behind httptest and returns it together with
// the WebSocket URL. Everything is torn down when the test ends.
func startTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server, string) {
	t.Helper()

	srv, err := New(cfg)
	require.NoError(t, err)
	srv.StartHub()

	testServer := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(func() {
		testServer.Close()
		_ = srv.Hub().Shutdown(time.Second)
	})

	return srv, testServer, "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
}

func dial(wsURL, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(wsURL, headers)
}

// testPeer is a client connection whose frames are collected by a background
// reader. An expired read deadline breaks a gorilla connection for good, so
// tests wait on the channel instead of on the socket.
type testPeer struct {
	*websocket.Conn
	frames chan []byte
}

func (p *testPeer) readLoop() {
	defer close(p.frames)
	for {
		_, data, err := p.ReadMessage()
		if err != nil {
			return
		}
		p.frames <- data
	}
}

// connectPeer dials the server and consumes the greeting, returning the
// peer and the id the server assigned to it.
func connectPeer(t *testing.T, wsURL string) (*testPeer, signaling.PeerID) {
	t.Helper()

	conn, resp, err := dial(wsURL, testOrigin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	peer := &testPeer{Conn: conn, frames: make(chan []byte, 64)}
	go peer.readLoop()

	greeting := readFrame(t, peer)
	require.Equal(t, protocol.TypeConnected, greeting.Type)
	require.NotEmpty(t, greeting.UserID)
	return peer, signaling.PeerID(greeting.UserID)
}

func sendFrame(t *testing.T, peer *testPeer, frame any) {
	t.Helper()
	require.NoError(t, peer.WriteJSON(frame))
}

func readFrame(t *testing.T, peer *testPeer) protocol.Outbound {
	t.Helper()

	select {
	case data, ok := <-peer.frames:
		require.True(t, ok, "connection closed")
		var out protocol.Outbound
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	case <-time.After(readTimeout):
		t.Fatal("timed out waiting for frame")
	}
	return protocol.Outbound{}
}

// expectNoFrame fails if a frame arrives within wait.
func expectNoFrame(t *testing.T, peer *testPeer, wait time.Duration) {
	t.Helper()

	select {
	case data, ok := <-peer.frames:
		if ok {
			t.Fatalf("unexpected frame %s", data)
		}
	case <-time.After(wait):
	}
}

// expectClosed waits for the server to close the connection, discarding any
// frames still in flight.
func expectClosed(t *testing.T, peer *testPeer) {
	t.Helper()

	timeout := time.After(readTimeout)
	for {
		select {
		case _, ok := <-peer.frames:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("connection was not closed")
		}
	}
}

func readyForCall() map[string]string {
	return map[string]string{"type": string(protocol.TypeReadyForCall)}
}

// newTestHub starts a hub whose clients have no socket; notifications pile up
// in their send channels where tests can inspect them.
func newTestHub(t *testing.T, opts signaling.Options) *Hub {
	t.Helper()

	hub := NewHub(DefaultConfig(), opts)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	return hub
}

func registerDetached(t *testing.T, hub *Hub) *Client {
	t.Helper()

	client := NewClient(nil, hub, "127.0.0.1:12345")
	require.True(t, hub.Register(client))

	greeting := nextNotification(t, client)
	require.Equal(t, protocol.TypeConnected, greeting.Type)
	require.Equal(t, string(client.ID()), greeting.UserID)
	return client
}

func nextNotification(t *testing.T, client *Client) protocol.Outbound {
	t.Helper()

	select {
	case raw, ok := <-client.GetSendChan():
		require.True(t, ok, "send channel closed")
		var out protocol.Outbound
		require.NoError(t, json.Unmarshal(raw, &out))
		return out
	case <-time.After(readTimeout):
		t.Fatal("timed out waiting for notification")
	}
	return protocol.Outbound{}
}

func expectNoNotification(t *testing.T, client *Client, wait time.Duration) {
	t.Helper()

	select {
	case raw, ok := <-client.GetSendChan():
		if ok {
			t.Fatalf("unexpected notification %s", raw)
		}
	case <-time.After(wait):
	}
}

func deliver(t *testing.T, hub *Hub, client *Client, raw string) {
	t.Helper()

	msg, err := protocol.DecodeInbound([]byte(raw))
	require.NoError(t, err)
	select {
	case hub.inbound <- inboundFrame{client: client, message: msg}:
	case <-time.After(readTimeout):
		t.Fatal("hub did not accept the frame")
	}
}
