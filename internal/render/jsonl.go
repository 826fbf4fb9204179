package render

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/parleyhq/parley/internal/event"
)

// JSONL renders every event as one JSON line, suitable for piping into
// other tools. Safe for concurrent use.
type JSONL struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONL creates a JSONL renderer writing to w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w)}
}

// Attach subscribes the renderer to every event on the bus and returns the
// subscription ID.
func (j *JSONL) Attach(bus *event.Bus) uint64 {
	return bus.SubscribeAll(j.Handle)
}

// Handle writes a single event as a JSON line. Encoding errors are
// swallowed; a broken pipe should not take down the debate.
func (j *JSONL) Handle(ev event.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(ev)
}
