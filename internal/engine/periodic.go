package engine

import (
	"context"
	"time"

	"github.com/SinghProbjot/Synapse/internal/groutine"
)

// periodicTask runs tick on a fixed interval until stopped.
type periodicTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startPeriodic(parent context.Context, name string, interval time.Duration, tick func()) *periodicTask {
	ctx, cancel := context.WithCancel(parent)
	p := &periodicTask{cancel: cancel, done: make(chan struct{})}

	groutine.Go(ctx, name, func(ctx context.Context) {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// a Stop racing with this tick wins
				if ctx.Err() != nil {
					return
				}
				tick()
			}
		}
	})
	return p
}

// Stop cancels the task and waits for its goroutine to exit, so no tick is
// observed after Stop returns. Safe on a nil task and on repeated calls.
func (p *periodicTask) Stop() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}
