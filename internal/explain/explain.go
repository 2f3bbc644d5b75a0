// Package explain records the decisions the feedback pipeline takes for one
// run, as structured lines an instructor can audit later.
package explain

import (
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"essaylens/internal/logging"
)

// Recorder accepts explainability lines. Category groups related lines,
// e.g. "LLM - cause effect".
type Recorder interface {
	Log(category, message string)
}

// Trace writes one JSON object per line, tagged with a run id.
type Trace struct {
	log    zerolog.Logger
	runID  string
	closer io.Closer
}

// New writes to w. Fields (model, backend, ...) are attached to every line.
func New(w io.Writer, fields map[string]string) *Trace {
	id := uuid.NewString()
	ctx := zerolog.New(w).With().Timestamp().Str("run_id", id)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ctx = ctx.Str(k, fields[k])
	}
	return &Trace{log: ctx.Logger(), runID: id}
}

// Open writes to a rotating file at path.
func Open(path string, maxSizeMB, maxBackups int, fields map[string]string) (*Trace, error) {
	rot, err := logging.Rotator(path, maxSizeMB, maxBackups)
	if err != nil {
		return nil, err
	}
	t := New(rot, fields)
	t.closer = rot
	return t, nil
}

func (t *Trace) RunID() string { return t.runID }

func (t *Trace) Log(category, message string) {
	t.log.Log().Str("category", category).Msg(message)
}

func (t *Trace) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// Entry is one recorded line.
type Entry struct {
	Category string
	Message  string
}

// Memory keeps lines in memory.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Log(category, message string) {
	m.mu.Lock()
	m.entries = append(m.entries, Entry{Category: category, Message: message})
	m.mu.Unlock()
}

// Entries returns a copy of everything recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Messages returns the messages recorded under category, in order.
func (m *Memory) Messages(category string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		if e.Category == category {
			out = append(out, e.Message)
		}
	}
	return out
}

type nop struct{}

func (nop) Log(string, string) {}

// Nop discards everything.
var Nop Recorder = nop{}
