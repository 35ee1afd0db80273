package engine

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func entry(i int) LogEntry {
	return LogEntry{Level: logrus.InfoLevel, Message: fmt.Sprintf("line %d", i)}
}

func messages(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestLogSink_NewestFirst(t *testing.T) {
	s := NewLogSink(5)
	for i := 1; i <= 3; i++ {
		s.Append(entry(i))
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"line 3", "line 2", "line 1"}, messages(s.Entries()))
}

func TestLogSink_EvictsOldest(t *testing.T) {
	s := NewLogSink(3)
	for i := 1; i <= 7; i++ {
		s.Append(entry(i))
	}

	assert.Equal(t, 3, s.Len(), "sink MUST never exceed its capacity")
	assert.Equal(t, []string{"line 7", "line 6", "line 5"}, messages(s.Entries()))
}

func TestLogSink_ExactlyFull(t *testing.T) {
	s := NewLogSink(2)
	s.Append(entry(1))
	s.Append(entry(2))

	assert.Equal(t, []string{"line 2", "line 1"}, messages(s.Entries()))
}

func TestLogSink_DefaultCapacity(t *testing.T) {
	s := NewLogSink(0)
	assert.Equal(t, DefaultLogCapacity, s.Cap())
	assert.Empty(t, s.Entries())
}
