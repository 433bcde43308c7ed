// Package rlog wraps zerolog to produce the "timestamped single-line
// records tagged INFO / ERROR" log contract spec.md §4.H and §7 require,
// grounded on glebovdev/somafm-cli's use of zerolog as its sole logging
// dependency.
package rlog

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: "2006-01-02T15:04:05Z07:00",
	// ConsoleWriter's default level column is three letters (INF, ERR);
	// print the full upper-case level name instead.
	FormatLevel: func(i any) string {
		s, _ := i.(string)
		return strings.ToUpper(s)
	},
}).
	With().
	Timestamp().
	Logger()

// Field is a single key=value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field; a terse constructor so call sites read like
// rlog.Info("stream started", rlog.F("id", id), rlog.F("mountpoint", mp)).
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Info emits an INFO-tagged line.
func Info(msg string, fields ...Field) {
	ev := logger.Info()
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

// Error emits an ERROR-tagged line.
func Error(msg string, fields ...Field) {
	ev := logger.Error()
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}
