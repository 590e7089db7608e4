package errlog

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/kbukum/pipekit/logger"
)

// Level selects the severity a Recorder logs at. The zero value is
// LevelError.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "error"
	}
}

// Recorder logs each distinct error value at most once. It walks an error's
// cause chain and logs every cause it has not seen before, deepest cause
// first, so the root failure reads before its wrappers. A second report of
// an already-seen error is dropped entirely.
//
// The seen set lives as long as the Recorder. Create one Recorder per owning
// flow and let it go out of scope with it.
type Recorder struct {
	mu   sync.Mutex
	log  *logger.Logger
	seen map[any]struct{}
}

// NewRecorder creates a Recorder writing through log. A nil log records
// silently.
func NewRecorder(log *logger.Logger) *Recorder {
	return &Recorder{
		log:  logger.OrNop(log),
		seen: make(map[any]struct{}),
	}
}

// Record logs err and its unseen causes at error level. The message, when
// non-empty, becomes the log line; the error text is attached as a field.
func (r *Recorder) Record(err error, message string) {
	r.Log(LevelError, err, message)
}

// Log logs err and its unseen causes at the given level. Nil errors and
// errors whose value was already recorded are ignored.
func (r *Recorder) Log(level Level, err error, message string) {
	if err == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seenLocked(err) {
		return
	}
	r.markLocked(err)

	if message != "" {
		r.emit(level, message, logger.Fields(logger.FieldError, errText(err)))
	} else {
		r.emit(level, errText(err))
	}

	causes := r.collectLocked(err)
	for i := len(causes) - 1; i >= 0; i-- {
		r.emit(level, "caused by", logger.Fields(logger.FieldError, errText(causes[i])))
	}
}

// Reset forgets every recorded error.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.seen)
}

// collectLocked gathers the unseen causes below err in chain order and marks
// them seen. Causes of an already-seen error are not revisited; they were
// marked when that error was first recorded.
func (r *Recorder) collectLocked(err error) []error {
	var out []error
	queue := causesOf(err)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil || r.seenLocked(c) {
			continue
		}
		r.markLocked(c)
		out = append(out, c)
		queue = append(queue, causesOf(c)...)
	}
	return out
}

func (r *Recorder) seenLocked(err error) bool {
	_, ok := r.seen[dedupKey(err)]
	return ok
}

func (r *Recorder) markLocked(err error) {
	r.seen[dedupKey(err)] = struct{}{}
}

func (r *Recorder) emit(level Level, msg string, fields ...map[string]interface{}) {
	switch level {
	case LevelDebug:
		r.log.Debug(msg, fields...)
	case LevelInfo:
		r.log.Info(msg, fields...)
	case LevelWarn:
		r.log.Warn(msg, fields...)
	default:
		r.log.Error(msg, fields...)
	}
}

// dedupKey maps an error to a map key that tracks its identity. Comparable
// error values key as themselves, which for the common pointer-backed error
// types is pointer identity. Non-comparable values fall back to type plus
// message.
func dedupKey(err error) any {
	if reflect.TypeOf(err).Comparable() {
		return err
	}
	return fmt.Sprintf("%T:%s", err, err.Error())
}

// errText returns the error message, or the error's type name when the
// message is empty.
func errText(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", err)
}

// causesOf returns the direct causes of err, honoring both single and
// multi-error unwrapping.
func causesOf(err error) []error {
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		return x.Unwrap()
	default:
		if c := stderrors.Unwrap(err); c != nil {
			return []error{c}
		}
	}
	return nil
}
