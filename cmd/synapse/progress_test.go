package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the printer goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressPrinter_PhasesAndStop(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	out := &syncBuffer{}
	p := NewProgressPrinter(out, "Connecting", "Scanning", "Ready")
	p.Start()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Connecting (Scanning...)")
	}, time.Second, 5*time.Millisecond, "initial phase MUST be printed on Start")

	p.Update("Discovering")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Discovering")
	}, time.Second, 5*time.Millisecond, "phase updates MUST be shown on the next tick")

	p.Update("Ready")
	assert.True(t, strings.HasSuffix(out.String(), clearLineSequence), "a stop phase MUST stop the printer and clear the line")

	before := out.String()
	p.Stop()
	time.Sleep(2 * progressUpdateInterval)
	assert.Equal(t, before, out.String(), "nothing MUST be printed after Stop")
}

func TestProgressPrinter_StartTwicePanics(t *testing.T) {
	p := NewCountdownProgressPrinter(&syncBuffer{}, "Scanning", "listening", time.Second)
	p.Start()
	defer p.Stop()
	assert.Panics(t, p.Start)
}

func TestProgressPrinter_Countdown(t *testing.T) {
	p := NewCountdownProgressPrinter(&syncBuffer{}, "Scanning", "listening", 3*time.Second)
	p.startTime = time.Now()
	assert.Equal(t, 3, p.seconds())

	p.startTime = time.Now().Add(-5 * time.Second)
	assert.Equal(t, 0, p.seconds(), "an expired countdown MUST show zero")
}
