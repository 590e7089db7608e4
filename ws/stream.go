package ws

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/flow"
	"github.com/kbukum/pipekit/logger"
)

// Stream is a websocket-backed push source. Decode turns each inbound
// frame into a T; frames Decode rejects fail the Recv that observed them.
//
// A Stream may be connected and disconnected repeatedly, which is what the
// reconnect supervisor does to it. It is not safe for concurrent Recv.
type Stream[T any] struct {
	cfg    Config
	decode func([]byte) (T, error)
	log    *logger.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	inbox chan frame
	// stop is closed by Disconnect; it ends the keepalive loop and
	// unblocks a read loop parked on a full inbox.
	stop chan struct{}
}

type frame struct {
	data []byte
	err  error
}

// New creates a stream that decodes each frame with decode.
func New[T any](cfg Config, decode func([]byte) (T, error), log *logger.Logger) (*Stream[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Validation(err.Error())
	}
	if decode == nil {
		return nil, errors.MissingField("decode")
	}
	return &Stream[T]{
		cfg:    cfg,
		decode: decode,
		log:    logger.OrNop(log).WithComponent("ws"),
	}, nil
}

// NewRaw creates a stream that yields frames as raw bytes.
func NewRaw(cfg Config, log *logger.Logger) (*Stream[[]byte], error) {
	return New(cfg, func(b []byte) ([]byte, error) { return b, nil }, log)
}

// Connect dials the endpoint, sends the configured subscribe frames, and
// starts the read and keepalive loops. Connecting an already-connected
// stream fails.
func (s *Stream[T]) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return errors.InvalidInput("state", "stream is already connected")
	}

	dialer := websocket.Dialer{HandshakeTimeout: ParseDuration(s.cfg.HandshakeTimeout)}
	header := http.Header{}
	for k, v := range s.cfg.Headers {
		header.Set(k, v)
	}
	conn, resp, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial %s: status %d: %w", s.cfg.URL, resp.StatusCode, err)
		}
		return err
	}
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	pongWait := ParseDuration(s.cfg.PongWait)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeTimeout := ParseDuration(s.cfg.WriteTimeout)
	for _, msg := range s.cfg.Subscribe {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			_ = conn.Close()
			return fmt.Errorf("subscribe write: %w", err)
		}
	}

	s.conn = conn
	s.inbox = make(chan frame, s.cfg.Buffer)
	s.stop = make(chan struct{})
	go s.readLoop(conn, s.inbox, s.stop, pongWait)
	go s.pingLoop(conn, s.stop, writeTimeout)
	s.log.Info("Websocket connected", logger.Fields("url", s.cfg.URL))
	return nil
}

// Disconnect sends a close frame and tears the connection down. Safe to
// call on a stream that is not connected.
func (s *Stream[T]) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	close(s.stop)
	deadline := time.Now().Add(ParseDuration(s.cfg.WriteTimeout))
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := s.conn.Close()
	s.conn = nil
	s.inbox = nil
	s.stop = nil
	s.log.Info("Websocket disconnected", logger.Fields("url", s.cfg.URL))
	return err
}

// Recv returns the next decoded message. It returns io.EOF when the peer
// closed normally; any other error is left for the caller's recoverable
// classification.
func (s *Stream[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	s.mu.Lock()
	inbox := s.inbox
	s.mu.Unlock()
	if inbox == nil {
		return zero, errors.InvalidInput("state", "stream is not connected")
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case f, ok := <-inbox:
		if !ok {
			return zero, io.EOF
		}
		if f.err != nil {
			return zero, f.err
		}
		v, err := s.decode(f.data)
		if err != nil {
			return zero, fmt.Errorf("decode frame: %w", err)
		}
		return v, nil
	}
}

// readLoop pumps inbound frames into the inbox until the connection dies.
// A normal close closes the inbox; anything else is delivered as the final
// frame for Recv to surface. Every send races the stop channel so a
// disconnect with a full inbox does not strand the loop on a channel send.
func (s *Stream[T]) readLoop(conn *websocket.Conn, inbox chan frame, stop chan struct{}, pongWait time.Duration) {
	defer close(inbox)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			select {
			case inbox <- frame{err: err}:
			case <-stop:
			}
			return
		}
		select {
		case inbox <- frame{data: data}:
		case <-stop:
			return
		}
	}
}

func (s *Stream[T]) pingLoop(conn *websocket.Conn, stop chan struct{}, writeTimeout time.Duration) {
	interval := ParseDuration(s.cfg.PingInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.Debug("Keepalive ping failed", logger.Fields(logger.FieldError, err.Error()))
				return
			}
		}
	}
}

var _ flow.StreamSource[[]byte] = (*Stream[[]byte])(nil)
