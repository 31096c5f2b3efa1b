package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-pullstream/consumers"
	"github.com/joeycumines/go-pullstream/creators"
)

// newBridgePair dials a real websocket connection against an httptest
// server and wraps each end in a Bridge, giving the test two independent
// peers, each with its own router table of stream IDs.
func newBridgePair(t *testing.T) (client *Bridge, server *Bridge) {
	t.Helper()

	serverConnCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		serverConnCh <- conn
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConnCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted the websocket connection")
	}

	client = New(ctx, clientConn)
	server = New(ctx, serverConn)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestBridge_SendReceive(t *testing.T) {
	client, server := newBridgePair(t)

	id := uuid.New()
	received := server.Receive(id)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sent := creators.Of([]byte("one"), []byte("two"), []byte("three"))

	done := make(chan error, 1)
	go func() { done <- client.Send(ctx, id, sent) }()

	got, err := consumers.ToArray(ctx, received)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, got)

	require.NoError(t, <-done)
}

func TestBridge_SendError(t *testing.T) {
	client, server := newBridgePair(t)

	id := uuid.New()
	received := server.Receive(id)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	boom := errTest("boom")
	sent := creators.ThrowError[[]byte](boom)

	go func() { _ = client.Send(ctx, id, sent) }()

	_, err := consumers.ToArray(ctx, received)
	require.ErrorContains(t, err, "boom")
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestBridge_CreditBlocksUntilDemand(t *testing.T) {
	client, server := newBridgePair(t)

	id := uuid.New()
	// build the Receive Source but never take a reader from it: its producer
	// never runs, so no credit is ever granted, and Send must block on credit
	// rather than racing ahead.
	_ = server.Receive(id)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	sent := creators.Of([]byte("one"))
	done := make(chan error, 1)
	go func() { done <- client.Send(ctx, id, sent) }()

	select {
	case err := <-done:
		t.Fatalf("Send returned early without a consumer ever pulling: %v", err)
	case <-ctx.Done():
	}
}
