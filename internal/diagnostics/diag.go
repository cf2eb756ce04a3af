package diagnostics

import (
	"sync"
	"time"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes raised by this program.
const (
	SerialConnectFailed = "SERIAL.CONNECT_FAILED"
	SerialStreamEnded   = "SERIAL.STREAM_ENDED"
	SerialDevice        = "SERIAL.DEVICE"
	DriverFallback      = "DRIVER.FALLBACK"
	TestDone            = "TEST.DONE"
	ShowLoadFailed      = "SHOW.LOAD_FAILED"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Log keeps the most recent diagnostics and fans new ones out to listeners.
type Log struct {
	mu        sync.Mutex
	max       int
	items     []Diagnostic
	listeners map[int]func(Diagnostic)
	nextID    int
}

func NewLog(max int) *Log {
	if max <= 0 {
		max = 64
	}
	return &Log{max: max, listeners: map[int]func(Diagnostic){}}
}

// Push records d, stamping the time when unset.
func (l *Log) Push(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	l.mu.Lock()
	l.items = append(l.items, d)
	if len(l.items) > l.max {
		l.items = l.items[len(l.items)-l.max:]
	}
	fns := make([]func(Diagnostic), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(d)
	}
}

// Recent returns a copy of the retained diagnostics, oldest first.
func (l *Log) Recent() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Diagnostic(nil), l.items...)
}

// Listen registers fn and returns a function that removes it.
func (l *Log) Listen(fn func(Diagnostic)) (cancel func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}
