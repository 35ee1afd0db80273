// Package engine is the host bridge: it drives the connection state machine
// over a device.Transport and runs the control loops (gyro mouse, proximity
// lock, bulk typing, anti-sleep) on top of a Ready link.
//
// All connection state is owned by a single loop goroutine. Transport events
// and user requests are serialized onto it and dispatched through one
// transition function. Commands may be sent from any goroutine; they reach the
// wire only while the link is Ready and are silently dropped otherwise.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/SinghProbjot/Synapse/internal/groutine"
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/SinghProbjot/Synapse/internal/ringchan"
	"github.com/SinghProbjot/Synapse/internal/sensor"
	"github.com/SinghProbjot/Synapse/internal/settings"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Options tunes the engine. Zero values are replaced by defaults in New.
type Options struct {
	ServiceUUID        string        `default:"6e400001-b5a3-f393-e0a9-e50e24dcca9e"`
	CharacteristicUUID string        `default:"6e400002-b5a3-f393-e0a9-e50e24dcca9e"`
	// TargetAddress pins the accessory; empty accepts the first one advertising the service.
	TargetAddress      string
	DiscoveryTimeout   time.Duration `default:"15s"`
	ProximityInterval  time.Duration `default:"2s"`
	ProximityThreshold int           `default:"-85"`
	TextInterval       time.Duration `default:"20ms"`
	LogCapacity        int           `default:"100"`
	SubscriberBuffer   int           `default:"64"`
}

// DefaultOptions returns options with defaults applied.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// Config wires an engine to its collaborators.
type Config struct {
	Transport device.Transport // required
	Settings  settings.Store   // nil means defaults only
	Motion    sensor.Source    // nil disables the gyro mouse
	Options   *Options
	Logger    *logrus.Logger
}

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	State       ConnectionState
	Connected   bool
	RadioOn     bool
	Address     string
	Name        string
	Motion      bool
	Proximity   bool
	Jiggler     bool
	PendingText int
	LastRSSI    int
	HasRSSI     bool
	Sent        uint64
	Suppressed  uint64
}

// deviceHandle is the connected accessory and its write channel.
type deviceHandle struct {
	address        string
	name           string
	service        string
	characteristic string
}

// Engine is the host bridge engine. Create with New, then Start.
type Engine struct {
	transport    device.Transport
	settings     settings.Store
	motionSource sensor.Source
	opts         *Options
	logger       *logrus.Logger
	sink         *LogSink

	requests chan request
	internal chan any

	ready      atomic.Bool
	sent       atomic.Uint64
	suppressed atomic.Uint64

	// loop-owned
	state      ConnectionState
	radioOn    bool
	target     string
	targetName string
	handle     *deviceHandle
	cycle      uint64
	timeout    *time.Timer
	motion     *motionLoop
	prox       proximityMonitor
	jiggler    bool
	bulk       *bulkText

	mu     sync.RWMutex
	status Snapshot

	subMu   sync.Mutex
	subs    map[uint64]*ringchan.RingChannel[Event]
	nextSub uint64
	closed  bool

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an engine in the Idle state. The radio is assumed off until the
// transport reports otherwise.
func New(cfg Config) *Engine {
	if cfg.Transport == nil {
		panic("engine: transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	opts := DefaultOptions()
	if cfg.Options != nil {
		o := *cfg.Options
		defaults.SetDefaults(&o)
		opts = &o
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		transport:    cfg.Transport,
		settings:     cfg.Settings,
		motionSource: cfg.Motion,
		opts:         opts,
		logger:       logger,
		sink:         NewLogSink(opts.LogCapacity),
		requests:     make(chan request),
		internal:     make(chan any, 16),
		prox:         proximityMonitor{threshold: opts.ProximityThreshold},
		subs:         make(map[uint64]*ringchan.RingChannel[Event]),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	e.bulk = newBulkText(ctx, opts.TextInterval, e.Send)
	return e
}

// Start runs the engine loop until ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	groutine.Go(ctx, "engine-loop", e.run)
}

// Close stops the engine, tearing down any active link. Idempotent.
func (e *Engine) Close() error {
	e.cancel()
	if e.started.Load() {
		<-e.done
	} else {
		e.closeSubscribers()
	}
	return nil
}

// Done is closed once the engine loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) run(ctx context.Context) {
	defer e.shutdown()
	e.logger.WithField("goroutine", groutine.Name(ctx)).Debug("Engine loop started")

	events := e.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.ctx.Done():
			return
		case ev := <-events:
			e.dispatch(ev)
		case req := <-e.requests:
			e.dispatch(req)
		case ev := <-e.internal:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) shutdown() {
	if e.state.linkActive() {
		e.teardown()
		e.transport.Disconnect()
		e.setState(StateIdle)
	}
	e.cancel()
	e.logger.Debug("Engine loop stopped")
	e.closeSubscribers()
	close(e.done)
}

// post hands an internal event to the loop.
func (e *Engine) post(ev any) {
	select {
	case e.internal <- ev:
	case <-e.ctx.Done():
	}
}

// submit runs a request on the loop and waits for its result.
func (e *Engine) submit(ctx context.Context, r request) error {
	r.reply = make(chan error, 1)
	select {
	case e.requests <- r:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-r.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	}
}

// Connect starts scanning for the accessory. Returns ErrRadioOff when the
// radio is disabled. A no-op while a link is already being established.
func (e *Engine) Connect(ctx context.Context) error {
	return e.submit(ctx, request{op: opConnect})
}

// Disconnect tears down the link and every active feature loop.
func (e *Engine) Disconnect(ctx context.Context) error {
	return e.submit(ctx, request{op: opDisconnect})
}

// ToggleConnection disconnects while connected or connecting, otherwise connects.
func (e *Engine) ToggleConnection(ctx context.Context) error {
	return e.submit(ctx, request{op: opToggle})
}

// Activate starts a feature loop. Requires a Ready link.
func (e *Engine) Activate(ctx context.Context, f Feature) error {
	return e.submit(ctx, request{op: opActivate, feature: f})
}

// Deactivate stops a feature loop. Once it returns no further work from that
// loop is observed.
func (e *Engine) Deactivate(ctx context.Context, f Feature) error {
	return e.submit(ctx, request{op: opDeactivate, feature: f})
}

// ToggleFeature flips a feature on or off.
func (e *Engine) ToggleFeature(ctx context.Context, f Feature) error {
	return e.submit(ctx, request{op: opToggleFeature, feature: f})
}

// TypeText queues text to be typed one character at a time. Requires a Ready link.
func (e *Engine) TypeText(ctx context.Context, text string) error {
	return e.submit(ctx, request{op: opTypeText, text: text})
}

// Flush returns once every transport event queued before the call was handled.
func (e *Engine) Flush(ctx context.Context) error {
	return e.submit(ctx, request{op: opFlush})
}

// Send encodes cmd and writes it if the link is Ready. Commands sent while
// not Ready, and empty moves, are dropped without error.
func (e *Engine) Send(cmd protocol.Command) error {
	_, err := e.send(cmd)
	return err
}

func (e *Engine) send(cmd protocol.Command) (wire string, err error) {
	data, err := protocol.Encode(cmd)
	if errors.Is(err, protocol.ErrEmptyMove) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", cmd, err)
	}

	if !e.ready.Load() {
		e.suppress(cmd)
		return "", nil
	}
	if err := e.transport.Write(data); err != nil {
		if errors.Is(err, device.ErrNotConnected) {
			e.suppress(cmd)
			return "", nil
		}
		return "", fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	e.sent.Add(1)
	e.logger.WithField("command", string(data)).Trace("Command sent")
	return string(data), nil
}

func (e *Engine) suppress(cmd protocol.Command) {
	e.suppressed.Add(1)
	e.logger.WithFields(logrus.Fields{
		"command": cmd.String(),
		"error":   ErrWriteSuppressed,
	}).Debug("Command dropped")
}

// sendRecorded sends a discrete command and records it in the log feed.
func (e *Engine) sendRecorded(cmd protocol.Command) {
	wire, err := e.send(cmd)
	switch {
	case err != nil:
		e.record(logrus.ErrorLevel, logrus.Fields{"command": cmd.String()}, "Send failed: %v", err)
	case wire != "":
		e.record(logrus.InfoLevel, nil, "Sent %s", wire)
	}
}

// Ready reports whether commands currently reach the wire.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// State returns the current connection state.
func (e *Engine) State() ConnectionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status.State
}

// Snapshot returns a consistent copy of the engine status.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	s := e.status
	e.mu.RUnlock()

	s.Connected = s.State == StateReady
	s.PendingText = e.bulk.Pending()
	s.Sent = e.sent.Load()
	s.Suppressed = e.suppressed.Load()
	return s
}

// Log returns the log feed, newest first.
func (e *Engine) Log() []LogEntry {
	return e.sink.Entries()
}

// Subscribe returns a stream of engine events and a function to stop it.
// Slow subscribers lose the oldest events.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	rc := ringchan.New[Event](e.opts.SubscriberBuffer)

	e.subMu.Lock()
	if e.closed {
		e.subMu.Unlock()
		rc.Close()
		return rc.C(), func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = rc
	e.subMu.Unlock()

	return rc.C(), func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
		rc.Close()
		if m := rc.GetMetrics(); m.Overwritten > 0 {
			e.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"delivered":  m.Written - m.Overwritten,
				"lost":       m.Overwritten,
			}).Debug("Slow subscriber lost events")
		}
	}
}

func (e *Engine) publish(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, rc := range e.subs {
		rc.Send(ev)
	}
}

func (e *Engine) closeSubscribers() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, rc := range e.subs {
		rc.Close()
		delete(e.subs, id)
	}
}

// record appends to the log feed, mirrors the entry to logrus and publishes it.
func (e *Engine) record(level logrus.Level, fields logrus.Fields, format string, args ...any) {
	entry := LogEntry{Time: time.Now(), Level: level, Message: fmt.Sprintf(format, args...)}
	e.sink.Append(entry)
	e.logger.WithFields(fields).Log(level, entry.Message)
	e.publish(LogAppended{Entry: entry})
}

func (e *Engine) controlSettings() settings.ControlSettings {
	cs, err := settings.Resolve(e.settings)
	if err != nil {
		e.logger.WithField("error", err).Warn("Ignoring malformed settings")
	}
	return cs
}

// setState transitions and publishes. Loop-owned.
func (e *Engine) setState(to ConnectionState) {
	from := e.state
	if from == to {
		return
	}
	e.state = to

	address := e.target
	e.mu.Lock()
	e.status.State = to
	e.status.Address = address
	e.status.Name = e.targetName
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"from":    from.String(),
		"to":      to.String(),
		"address": address,
	}).Debug("Connection state changed")
	e.publish(StateChanged{From: from, To: to, Address: address})
}

func (e *Engine) setRadio(on bool) {
	e.radioOn = on
	e.mu.Lock()
	e.status.RadioOn = on
	e.mu.Unlock()
}

func (e *Engine) setFeature(f Feature, active bool) {
	e.mu.Lock()
	switch f {
	case FeatureMotion:
		e.status.Motion = active
	case FeatureProximity:
		e.status.Proximity = active
	case FeatureJiggler:
		e.status.Jiggler = active
	}
	e.mu.Unlock()
	e.publish(FeatureChanged{Feature: f, Active: active})
}
