package engine

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultLogCapacity is the number of entries the log feed keeps.
const DefaultLogCapacity = 100

// LogEntry is one status line of the log feed.
type LogEntry struct {
	Time    time.Time
	Level   logrus.Level
	Message string
}

// LogSink is a fixed-capacity ring of log entries. The oldest entry is evicted on overflow.
type LogSink struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

// NewLogSink creates a sink holding at most capacity entries.
func NewLogSink(capacity int) *LogSink {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogSink{entries: make([]LogEntry, capacity)}
}

// Append stores an entry, evicting the oldest when full.
func (s *LogSink) Append(e LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = e
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
}

// Entries returns a copy of the feed, newest first.
func (s *LogSink) Entries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.full {
		n = len(s.entries)
	}
	out := make([]LogEntry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out
}

// Len returns the number of stored entries.
func (s *LogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return len(s.entries)
	}
	return s.next
}

// Cap returns the sink capacity.
func (s *LogSink) Cap() int {
	return len(s.entries)
}
