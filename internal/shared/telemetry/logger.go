// Package telemetry writes one JSON object per line for every event the
// service logs. Event names are dotted (ingest.enrich_failed) and fields use
// snake_case keys.
package telemetry

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stdout
)

// SetOutput redirects log lines to w and returns a func restoring the
// previous writer.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return func() {
		mu.Lock()
		out = prev
		mu.Unlock()
	}
}

// Info logs a routine event.
func Info(msg string, fields map[string]any) {
	write("info", msg, fields)
}

// Warn logs a client-caused or degraded-but-served event.
func Warn(msg string, fields map[string]any) {
	write("warn", msg, fields)
}

// Error logs a failure that needs attention.
func Error(msg string, fields map[string]any) {
	write("error", msg, fields)
}

func write(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg

	line, err := json.Marshal(entry)
	if err != nil {
		line, _ = json.Marshal(map[string]any{
			"ts":    entry["ts"],
			"level": "error",
			"msg":   "telemetry.marshal_failed",
			"event": msg,
			"error": err.Error(),
		})
	}
	line = append(line, '\n')

	mu.Lock()
	defer mu.Unlock()
	_, _ = out.Write(line)
}
