package ws

import (
	stderrors "errors"
	"io"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
)

// Recoverable classifies stream failures worth reconnecting for: abnormal
// websocket closures, read deadline expiry (missed pongs), and transport
// resets. Handshake rejections and decode failures are not recoverable.
// Plug it into flow.StreamConfig.Recoverable.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err,
		websocket.CloseAbnormalClosure,
		websocket.CloseServiceRestart,
		websocket.CloseTryAgainLater,
		websocket.CloseInternalServerErr,
	) {
		return true
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	var nerr net.Error
	if stderrors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
