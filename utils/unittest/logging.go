package unittest

import (
	"flag"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "print debugging logs")

// Logger returns a zerolog
// use -vv flag to print debugging logs for tests
func Logger() zerolog.Logger {
	writer := io.Discard

	if *verbose {
		writer = os.Stderr
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(writer).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return log
}

// LogRecorder is a zerolog hook remembering the messages logged per level.
type LogRecorder struct {
	mu       sync.Mutex
	messages map[zerolog.Level][]string
}

func (r *LogRecorder) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = make(map[zerolog.Level][]string)
	}
	r.messages[level] = append(r.messages[level], msg)
}

// Messages returns the messages logged at the level so far.
func (r *LogRecorder) Messages(level zerolog.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages[level]))
	copy(out, r.messages[level])
	return out
}

// RecordingLogger returns a test logger and the recorder hooked into it.
func RecordingLogger() (zerolog.Logger, *LogRecorder) {
	recorder := &LogRecorder{}
	return Logger().Hook(recorder), recorder
}
