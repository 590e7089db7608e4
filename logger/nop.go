package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Nop returns a logger that discards everything it is given.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop(), service: "nop"}
}

// OrNop returns the given logger, or a discarding logger when l is nil.
// Useful for optional logger fields on config structs.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// NewWithWriter creates a JSON logger writing to w at debug level. Intended
// for tests that assert on emitted lines.
func NewWithWriter(w io.Writer, serviceName string) *Logger {
	zl := zerolog.New(w).Level(zerolog.DebugLevel)
	return &Logger{logger: zl, service: serviceName}
}
