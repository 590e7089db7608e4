package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/pipekit/flow"
	"github.com/kbukum/pipekit/pipe"
	"github.com/kbukum/pipekit/resilience"
)

var upgrader = websocket.Upgrader{}

// wsServer runs handler for each websocket connection and returns the
// ws:// URL to dial.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	// Wait for the client's close response so the closure is clean.
	_, _, _ = conn.ReadMessage()
}

func TestStream_RecvDecodesUntilEOF(t *testing.T) {
	type tick struct {
		Price float64 `json:"price"`
	}
	url := wsServer(t, func(conn *websocket.Conn) {
		for _, p := range []string{`{"price":1.5}`, `{"price":2.5}`} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		closeNormally(conn)
	})

	s, err := New(Config{URL: url}, func(b []byte) (tick, error) {
		var v tick
		return v, json.Unmarshal(b, &v)
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })

	var prices []float64
	for {
		v, err := s.Recv(ctx)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		prices = append(prices, v.Price)
	}
	if len(prices) != 2 || prices[0] != 1.5 || prices[1] != 2.5 {
		t.Fatalf("received %v, want [1.5 2.5]", prices)
	}
}

func TestStream_SubscribeFramesSentOnConnect(t *testing.T) {
	received := make(chan string, 1)
	url := wsServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		closeNormally(conn)
	})

	cfg := Config{URL: url, Subscribe: []string{`{"op":"subscribe","channel":"trades"}`}}
	s, err := NewRaw(cfg, nil)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })

	select {
	case got := <-received:
		if !strings.Contains(got, "subscribe") {
			t.Fatalf("server received %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the subscribe frame")
	}
}

func TestStream_AbnormalCloseIsRecoverable(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		// Drop the TCP connection without a close frame.
		_ = conn.Close()
	})

	s, err := NewRaw(Config{URL: url}, nil)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })

	_, recvErr := s.Recv(ctx)
	if recvErr == nil {
		t.Fatal("Recv succeeded, want error")
	}
	if stderrors.Is(recvErr, io.EOF) {
		t.Fatal("abnormal close reported as normal EOF")
	}
	if !Recoverable(recvErr) {
		t.Fatalf("abnormal close not classified recoverable: %v", recvErr)
	}
}

func TestStream_DisconnectUnblocksFullInbox(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 10; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("msg")); err != nil {
				return
			}
		}
		// Keep the connection open; the client side disconnects first.
		_, _, _ = conn.ReadMessage()
	})

	s, err := NewRaw(Config{URL: url, Buffer: 1}, nil)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	s.mu.Lock()
	inbox := s.inbox
	s.mu.Unlock()

	// Wait until the inbox is full, so the read loop is parked on the
	// send of the next frame with nobody receiving.
	deadline := time.Now().Add(2 * time.Second)
	for len(inbox) < cap(inbox) {
		if time.Now().After(deadline) {
			t.Fatal("inbox never filled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	// The read loop closes the inbox on exit; draining to the close
	// proves the disconnect unblocked it.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-inbox:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("read loop still parked on the inbox after disconnect")
		}
	}
}

func TestStream_RecvBeforeConnectFails(t *testing.T) {
	s, err := NewRaw(Config{URL: "ws://localhost:1"}, nil)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if _, err := s.Recv(context.Background()); err == nil {
		t.Fatal("Recv on unconnected stream succeeded")
	}
}

func TestRecoverable_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"normal close", &websocket.CloseError{Code: websocket.CloseNormalClosure}, false},
		{"abnormal close", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, true},
		{"service restart", &websocket.CloseError{Code: websocket.CloseServiceRestart}, true},
		{"policy violation", &websocket.CloseError{Code: websocket.ClosePolicyViolation}, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"plain error", stderrors.New("bad decode"), false},
	}
	for _, tc := range cases {
		if got := Recoverable(tc.err); got != tc.want {
			t.Errorf("%s: Recoverable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStream_ReconnectingFlowDeliversAcrossDrops(t *testing.T) {
	var conns atomic.Int64
	url := wsServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		if n < 3 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("msg"))
			_ = conn.Close() // drop mid-stream
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("msg"))
		closeNormally(conn)
	})

	s, err := NewRaw(Config{URL: url}, nil)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	dst := pipe.New[string](16)
	toString := flow.Map(func(_ context.Context, b []byte) (string, error) {
		return string(b), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := flow.ReconnectConfig[[]byte, string]{
		Stream: flow.StreamConfig[[]byte, string]{
			Recoverable: Recoverable,
		},
		MaxAttempts: 5,
		Backoff:     resilience.RetryConfig{InitialBackoff: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond, BackoffFactor: 2},
	}
	if err := flow.ReconnectingStreamToPipe(ctx, s, toString, dst, cfg); err != nil {
		t.Fatalf("ReconnectingStreamToPipe failed: %v", err)
	}
	if got := conns.Load(); got != 3 {
		t.Fatalf("server saw %d connections, want 3", got)
	}

	var out []string
	for {
		it, gerr := dst.Get(ctx)
		if gerr != nil {
			t.Fatalf("Get failed: %v", gerr)
		}
		dst.TaskDone()
		if it.IsEnd() {
			break
		}
		out = append(out, it.Value())
	}
	if len(out) != 3 {
		t.Fatalf("destination received %v, want 3 messages", out)
	}
}
