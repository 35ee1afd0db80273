package groutine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoLabelsGoroutine(t *testing.T) {
	got := make(chan string, 1)
	Go(nil, "engine-loop", func(ctx context.Context) {
		got <- Name(ctx)
	})
	assert.Equal(t, "engine-loop", <-got)
	assert.Empty(t, Name(context.Background()), "unlabelled context MUST have no name")
}

func TestGoTrackedWaitsForAll(t *testing.T) {
	var wg sync.WaitGroup
	var done atomic.Int32

	for i := 0; i < 5; i++ {
		GoTracked(context.Background(), &wg, "bulk-text", func(context.Context) {
			done.Add(1)
		})
	}
	wg.Wait()

	assert.EqualValues(t, 5, done.Load(), "Wait MUST return only after every tracked goroutine finished")
}

func TestGoPassesParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	GoTracked(ctx, &wg, "ble-scan", func(ctx context.Context) {
		<-ctx.Done()
	})
	cancel()
	wg.Wait()
}
