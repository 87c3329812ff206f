package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

// ParseLogLevel parses a string log level. Unknown levels map to info.
func ParseLogLevel(s string) LogLevel {
	if i := slices.Index(levelNames[:], strings.ToLower(s)); i >= 0 {
		return LogLevel(i)
	}
	return LevelInfo
}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "info"
	}
	return levelNames[l]
}

// jsonLogger writes one JSON object per line. Keys keep the order they were
// given in: timestamp, level, msg, trace ids, bound fields, call fields. A
// repeated key keeps its first position and its last value.
type jsonLogger struct {
	level LogLevel
	out   *lockedWriter
	bound []Field
}

// lockedWriter is shared by a logger and everything derived with With.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogger creates a new structured logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &jsonLogger{level: ParseLogLevel(level), out: &lockedWriter{w: w}}
}

// With returns a logger that adds fields to every entry.
func (l *jsonLogger) With(fields ...Field) Logger {
	return &jsonLogger{
		level: l.level,
		out:   l.out,
		bound: append(slices.Clip(l.bound), fields...),
	}
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *jsonLogger) log(ctx context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make([]Field, 0, 5+len(l.bound)+len(fields))
	entry = append(entry,
		F("timestamp", time.Now().UTC().Format(time.RFC3339Nano)),
		F("level", level.String()),
		F("msg", msg),
	)
	if traceID, spanID, ok := spanIDs(ctx); ok {
		entry = append(entry, F("trace_id", traceID), F("span_id", spanID))
	}
	entry = appendFields(entry, l.bound)
	entry = appendFields(entry, fields)

	line, ok := encodeLine(entry)
	if !ok {
		return
	}
	l.out.mu.Lock()
	_, _ = l.out.w.Write(line)
	l.out.mu.Unlock()
}

func appendFields(entry, fields []Field) []Field {
	for _, f := range fields {
		f.Value = redact(f)
		if i := slices.IndexFunc(entry, func(e Field) bool { return e.Key == f.Key }); i >= 0 {
			entry[i].Value = f.Value
			continue
		}
		entry = append(entry, f)
	}
	return entry
}

// encodeLine reports false when a value cannot be encoded; the entry is
// dropped.
func encodeLine(entry []Field) ([]byte, bool) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range entry {
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, false
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, false
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteString("}\n")
	return buf.Bytes(), true
}

func redact(f Field) any {
	if isRedactedField(f.Key) {
		return "[REDACTED]"
	}
	if err, ok := f.Value.(error); ok && err != nil {
		return err.Error()
	}
	return f.Value
}

func isRedactedField(key string) bool {
	return slices.Contains(RedactedFields, strings.ToLower(key))
}

var _ Logger = (*jsonLogger)(nil)
