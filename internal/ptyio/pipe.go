// Package ptyio exposes a pseudo-terminal whose input is typed on the
// companion computer. Anything written to the slave device (for example
// `echo hello > /dev/pts/5`) is decoded as UTF-8 and handed to a TextSink.
//
// The master side is non-blocking. A read loop polls it and buffers bytes in a
// ring buffer; a dispatcher drains the ring, decodes complete characters and
// calls the sink. A slow sink never stalls the terminal: when the ring is full
// the newest bytes are dropped and counted.
package ptyio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/SinghProbjot/Synapse/internal/groutine"
	"github.com/creack/pty"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// TextSink receives decoded text. It is called from the dispatcher goroutine,
// one call at a time, in input order.
type TextSink func(text string)

// Options configures a Pipe.
type Options struct {
	// ReadCap is the ring buffer capacity in bytes.
	ReadCap int `default:"4096"`
	// PollTimeout bounds how long the read loop waits before checking for shutdown.
	PollTimeout time.Duration `default:"50ms"`
	Logger      *logrus.Logger
}

// DefaultOptions returns options with defaults applied.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// Stats are runtime counters of a Pipe.
type Stats struct {
	BufferedBytes int
	ReadBytes     uint64
	DroppedBytes  uint64
	TextCalls     uint64
}

// Pipe is an open pseudo-terminal feeding a TextSink.
type Pipe struct {
	logger      *logrus.Logger
	master      *os.File
	slave       *os.File
	fd          int
	ttyName     string
	pollTimeout int

	buf    *ringbuffer.RingBuffer
	notify chan struct{}
	sink   TextSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	readBytes atomic.Uint64
	dropped   atomic.Uint64
	textCalls atomic.Uint64
}

// Open creates a pseudo-terminal and starts forwarding its input to sink.
func Open(opts *Options, sink TextSink) (*Pipe, error) {
	if sink == nil {
		return nil, errors.New("ptyio: text sink is required")
	}
	if opts == nil {
		opts = DefaultOptions()
	} else {
		o := *opts
		defaults.SetDefaults(&o)
		opts = &o
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	master, slave, fd, err := createPTY()
	if err != nil {
		return nil, err
	}

	pollTimeout := int(opts.PollTimeout / time.Millisecond)
	if pollTimeout <= 0 {
		pollTimeout = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipe{
		logger:      logger,
		master:      master,
		slave:       slave,
		fd:          fd,
		ttyName:     slave.Name(),
		pollTimeout: pollTimeout,
		buf:         ringbuffer.New(opts.ReadCap),
		notify:      make(chan struct{}, 1),
		sink:        sink,
		ctx:         ctx,
		cancel:      cancel,
	}

	groutine.GoTracked(ctx, &p.wg, "pty-read-loop", p.readLoop)
	groutine.GoTracked(ctx, &p.wg, "pty-text-dispatcher", p.dispatch)

	logger.WithField("tty", p.ttyName).Info("Keyboard pipe open")
	return p, nil
}

// TTYName returns the slave device path, e.g. "/dev/pts/5".
func (p *Pipe) TTYName() string {
	return p.ttyName
}

// Stats returns a snapshot of the pipe counters.
func (p *Pipe) Stats() Stats {
	return Stats{
		BufferedBytes: p.buf.Length(),
		ReadBytes:     p.readBytes.Load(),
		DroppedBytes:  p.dropped.Load(),
		TextCalls:     p.textCalls.Load(),
	}
}

// Close stops forwarding and releases the terminal. Idempotent.
func (p *Pipe) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()

	var errs []error
	if err := p.master.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close PTY master: %w", err))
	}
	if err := p.slave.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close PTY slave: %w", err))
	}
	p.wg.Wait()

	p.logger.WithField("tty", p.ttyName).Debug("Keyboard pipe closed")
	return errors.Join(errs...)
}

func (p *Pipe) readLoop(ctx context.Context) {
	// capture the file: Close may run concurrently
	master := p.master
	pollFd := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	chunk := make([]byte, 1024)

	for ctx.Err() == nil {
		ready, err := unix.Poll(pollFd, p.pollTimeout)
		if err != nil && !errors.Is(err, syscall.EINTR) {
			p.logger.WithField("error", err).Warn("PTY poll failed")
			continue
		}
		if ready == 0 {
			continue
		}

		n, err := master.Read(chunk)
		if n > 0 {
			written, werr := p.buf.Write(chunk[:n])
			if werr != nil && !errors.Is(werr, ringbuffer.ErrIsFull) && !errors.Is(werr, ringbuffer.ErrTooMuchDataToWrite) {
				p.logger.WithField("error", werr).Warn("PTY buffer write failed")
			}
			if written < n {
				p.dropped.Add(uint64(n - written))
				p.logger.WithFields(logrus.Fields{
					"received": n,
					"buffered": written,
				}).Warn("Keyboard pipe overflow, input dropped")
			}
			p.readBytes.Add(uint64(written))
			if written > 0 {
				select {
				case p.notify <- struct{}{}:
				default:
				}
			}
		}

		if err != nil {
			switch {
			case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
				continue
			case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed), errors.Is(err, syscall.EBADF), errors.Is(err, syscall.EIO):
				// EIO: no process holds the slave open
				if ctx.Err() != nil || !errors.Is(err, syscall.EIO) {
					return
				}
				time.Sleep(time.Duration(p.pollTimeout) * time.Millisecond)
			default:
				p.logger.WithField("error", err).Warn("PTY read failed")
				return
			}
		}
	}
}

func (p *Pipe) dispatch(ctx context.Context) {
	var dec TextDecoder
	tmp := make([]byte, 1024)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notify:
		}

		for ctx.Err() == nil {
			n, err := p.buf.TryRead(tmp)
			if n == 0 || errors.Is(err, ringbuffer.ErrIsEmpty) {
				break
			}
			if text := dec.Feed(tmp[:n]); text != "" {
				p.textCalls.Add(1)
				p.sink(text)
			}
		}
	}
}

// createPTY opens a pseudo-terminal with a raw slave and a non-blocking master.
func createPTY() (master, slave *os.File, fd int, err error) {
	master, slave, err = pty.Open()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("failed to create PTY (check permissions and available PTY devices): %w", err)
	}

	closeBoth := func(cause error) error {
		return errors.Join(cause, master.Close(), slave.Close())
	}

	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		return nil, nil, -1, closeBoth(fmt.Errorf("failed to set %s to raw mode: %w", slave.Name(), err))
	}
	// Fd switches the file to blocking mode, so take it once before SetNonblock
	fd = int(master.Fd())
	if err := syscall.SetNonblock(fd, true); err != nil {
		return nil, nil, -1, closeBoth(fmt.Errorf("failed to set PTY master of %s non-blocking: %w", slave.Name(), err))
	}
	return master, slave, fd, nil
}
