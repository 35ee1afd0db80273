package engine

import (
	"context"
	"sync"
	"time"

	"github.com/SinghProbjot/Synapse/internal/groutine"
	"github.com/SinghProbjot/Synapse/internal/protocol"
)

// DefaultTextInterval is the spacing between typed characters.
const DefaultTextInterval = 20 * time.Millisecond

// bulkText paces strings out as single-character commands. Batches are typed
// one after another; within a batch character i is sent at t0 + i*interval,
// where t0 is when the batch starts.
type bulkText struct {
	send     func(protocol.Command) error
	interval time.Duration
	parent   context.Context

	mu        sync.Mutex
	queue     [][]protocol.Command
	remaining int
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func newBulkText(parent context.Context, interval time.Duration, send func(protocol.Command) error) *bulkText {
	return &bulkText{send: send, interval: interval, parent: parent}
}

// Enqueue schedules text and returns the number of characters queued.
func (b *bulkText) Enqueue(text string) int {
	cmds := protocol.TextCommands(text)
	if len(cmds) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		b.ctx, b.cancel = context.WithCancel(b.parent)
	}
	b.queue = append(b.queue, cmds)
	b.remaining += len(cmds)
	if !b.running {
		b.running = true
		groutine.GoTracked(b.ctx, &b.wg, "bulk-text", b.drain)
	}
	return len(cmds)
}

// Pending returns the number of characters not yet sent.
func (b *bulkText) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Cancel drops queued and in-flight text and waits for the sender to exit.
func (b *bulkText) Cancel() {
	b.mu.Lock()
	cancel := b.cancel
	b.queue = nil
	b.remaining = 0
	b.running = false
	b.ctx, b.cancel = nil, nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

func (b *bulkText) drain(ctx context.Context) {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 || ctx.Err() != nil {
			if b.ctx == ctx {
				b.running = false
			}
			b.mu.Unlock()
			return
		}
		batch := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		if !b.dispatch(ctx, batch) {
			return
		}
	}
}

// dispatch sends one batch on a fixed schedule relative to its start.
// Returns false if cancelled.
func (b *bulkText) dispatch(ctx context.Context, batch []protocol.Command) bool {
	t0 := time.Now()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for i, cmd := range batch {
		if wait := time.Until(t0.Add(time.Duration(i) * b.interval)); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return false
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return false
		}

		_ = b.send(cmd)

		b.mu.Lock()
		if b.remaining > 0 {
			b.remaining--
		}
		b.mu.Unlock()
	}
	return true
}
