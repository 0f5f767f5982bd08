package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// JSONEmitter writes each Event as a newline-delimited JSON object — the
// wire format the outer UI collaborator consumes (§6). Safe for concurrent
// use: writes are serialized behind a mutex so interleaved stages never
// produce a torn line.
type JSONEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONEmitter returns an Emitter that writes to w.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{w: w}
}

// Emit stamps the event's Time if unset and writes it as one JSON line.
// Marshal failures are swallowed: event emission must never fail the
// calling stage.
func (e *JSONEmitter) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.w.Write(line)
	e.w.Write([]byte("\n"))
}
