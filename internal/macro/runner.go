package macro

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/aarzilli/golua/lua"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
)

// Target receives the commands a macro emits. *engine.Engine implements it.
type Target interface {
	Send(cmd protocol.Command) error
	Shortcut(s protocol.Shortcut) error
	TypeText(ctx context.Context, text string) error
}

var _ Target = (*engine.Engine)(nil)

// OutputRecord is one line printed or logged by a macro.
type OutputRecord struct {
	Slot      string
	Content   string
	Timestamp time.Time
}

// MaxSleep caps a single synapse.sleep call.
const MaxSleep = 10 * time.Second

// TranscriptSize bounds the print/log lines kept between Transcript calls.
const TranscriptSize = 128

// Runner executes macros against a Target. Each run gets a fresh Lua state,
// so macros never share globals.
type Runner struct {
	target     Target
	logger     *logrus.Logger
	transcript mpmc.RichOverlappedRingBuffer[OutputRecord]
	dropped    atomic.Int64
}

// NewRunner creates a runner sending to target.
func NewRunner(target Target, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		target:     target,
		logger:     logger,
		transcript: mpmc.NewOverlappedRingBuffer[OutputRecord](TranscriptSize),
	}
}

// Transcript drains the print/log lines written since the previous call,
// oldest first. When a macro prints more than TranscriptSize lines the oldest
// are overwritten.
func (r *Runner) Transcript() []OutputRecord {
	var out []OutputRecord
	for !r.transcript.IsEmpty() {
		rec, err := r.transcript.Dequeue()
		if err != nil {
			break
		}
		out = append(out, rec)
	}
	return out
}

// Dropped returns how many transcript lines were overwritten before being read.
func (r *Runner) Dropped() int64 {
	return r.dropped.Load()
}

// Run executes m until it returns, fails, or ctx is done. The Lua state is
// only touched from the calling goroutine.
func (r *Runner) Run(ctx context.Context, m Macro) error {
	L := lua.NewState()
	defer L.Close()
	L.OpenLibs()

	run := &macroRun{runner: r, ctx: ctx, slot: m.Slot}
	run.register(L)

	log := r.logger.WithFields(logrus.Fields{"slot": m.Slot, "label": m.Label})
	log.Debug("Running macro")
	started := time.Now()

	if err := L.DoString(m.Script); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("macro %s cancelled: %w", m.Slot, ctxErr)
		}
		return fmt.Errorf("macro %s failed: %w", m.Slot, err)
	}

	log.WithFields(logrus.Fields{
		"duration": time.Since(started),
		"commands": run.commands,
	}).Debug("Macro finished")
	return nil
}

// macroRun is the per-execution state behind the synapse table.
type macroRun struct {
	runner   *Runner
	ctx      context.Context
	slot     string
	commands int
}

func (m *macroRun) register(L *lua.State) {
	L.NewTable()

	m.pushFunction(L, "key", m.key)
	m.pushFunction(L, "text", m.text)
	m.pushFunction(L, "click", m.click)
	m.pushFunction(L, "move", m.move)
	m.pushFunction(L, "media", m.media)
	m.pushFunction(L, "config", m.config)
	m.pushFunction(L, "shortcut", m.shortcut)
	m.pushFunction(L, "sleep", m.sleep)
	m.pushFunction(L, "log", m.log)

	L.SetGlobal("synapse")

	L.PushGoFunction(m.safeWrap("print", m.print))
	L.SetGlobal("print")
}

// pushFunction adds fn to the table on top of the stack.
func (m *macroRun) pushFunction(L *lua.State, name string, fn func(*lua.State) int) {
	L.PushString(name)
	L.PushGoFunction(m.safeWrap("synapse."+name, fn))
	L.SetTable(-3)
}

// safeWrap fails the call once the run is cancelled and turns Go panics into Lua errors.
func (m *macroRun) safeWrap(name string, fn func(*lua.State) int) lua.LuaGoFunction {
	return func(L *lua.State) int {
		defer func() {
			if r := recover(); r != nil {
				if luaErr, ok := r.(*lua.LuaError); ok {
					panic(luaErr)
				}
				m.runner.logger.WithFields(logrus.Fields{
					"slot":     m.slot,
					"function": name,
					"panic":    r,
				}).Error("Macro function panicked")
				L.RaiseError(fmt.Sprintf("%s: internal error: %v", name, r))
			}
		}()

		if err := m.ctx.Err(); err != nil {
			L.RaiseError(fmt.Sprintf("%s: %v", name, err))
			return 0
		}
		return fn(L)
	}
}

// emit sends cmd, raising a Lua error when it cannot be encoded or written.
func (m *macroRun) emit(L *lua.State, cmd protocol.Command) int {
	if err := m.runner.target.Send(cmd); err != nil {
		L.RaiseError(err.Error())
		return 0
	}
	m.commands++
	return 0
}

// stringArg returns argument n as a string or raises a Lua error.
func stringArg(L *lua.State, n int, fn string) string {
	if L.Type(n) != lua.LUA_TSTRING {
		L.RaiseError(fmt.Sprintf("%s expects a string as argument %d", fn, n))
	}
	return L.ToString(n)
}

// intArg returns argument n as an integer or raises a Lua error.
func intArg(L *lua.State, n int, fn string) int {
	if L.Type(n) != lua.LUA_TNUMBER {
		L.RaiseError(fmt.Sprintf("%s expects a number as argument %d", fn, n))
	}
	return L.ToInteger(n)
}

func (m *macroRun) key(L *lua.State) int {
	return m.emit(L, protocol.Key{Code: stringArg(L, 1, "key")})
}

func (m *macroRun) text(L *lua.State) int {
	text := stringArg(L, 1, "text")
	err := m.runner.target.TypeText(m.ctx, text)
	switch {
	case errors.Is(err, engine.ErrNotReady):
		m.runner.logger.WithField("slot", m.slot).Debug("Macro text dropped, link not ready")
	case err != nil:
		L.RaiseError(err.Error())
	default:
		m.commands++
	}
	return 0
}

func (m *macroRun) click(L *lua.State) int {
	name := string(protocol.ButtonLeft)
	if !L.IsNoneOrNil(1) {
		name = stringArg(L, 1, "click")
	}
	button, err := protocol.ParseButton(name)
	if err != nil {
		L.RaiseError(err.Error())
		return 0
	}
	return m.emit(L, protocol.Click{Button: button})
}

func (m *macroRun) move(L *lua.State) int {
	return m.emit(L, protocol.Move{DX: intArg(L, 1, "move"), DY: intArg(L, 2, "move")})
}

func (m *macroRun) media(L *lua.State) int {
	action, err := protocol.ParseMediaAction(stringArg(L, 1, "media"))
	if err != nil {
		L.RaiseError(err.Error())
		return 0
	}
	return m.emit(L, protocol.Media{Action: action})
}

func (m *macroRun) config(L *lua.State) int {
	name := stringArg(L, 1, "config")
	enabled := true
	if !L.IsNoneOrNil(2) {
		enabled = L.ToBoolean(2)
	}
	return m.emit(L, protocol.Config{Name: name, Enabled: enabled})
}

func (m *macroRun) shortcut(L *lua.State) int {
	s, err := protocol.ParseShortcut(stringArg(L, 1, "shortcut"))
	if err != nil {
		L.RaiseError(err.Error())
		return 0
	}
	if err := m.runner.target.Shortcut(s); err != nil {
		L.RaiseError(err.Error())
		return 0
	}
	m.commands++
	return 0
}

// sleep pauses for the given milliseconds, waking early on cancellation.
func (m *macroRun) sleep(L *lua.State) int {
	ms := intArg(L, 1, "sleep")
	d := time.Duration(ms) * time.Millisecond
	if d <= 0 {
		return 0
	}
	if d > MaxSleep {
		d = MaxSleep
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-m.ctx.Done():
		L.RaiseError("sleep: " + m.ctx.Err().Error())
	}
	return 0
}

func (m *macroRun) log(L *lua.State) int {
	msg := stringArg(L, 1, "log")
	m.runner.logger.WithField("slot", m.slot).Info(msg)
	m.write(msg)
	return 0
}

func (m *macroRun) print(L *lua.State) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		switch {
		case L.IsNil(i):
			parts = append(parts, "nil")
		case L.IsBoolean(i):
			parts = append(parts, fmt.Sprintf("%t", L.ToBoolean(i)))
		case L.IsNumber(i):
			parts = append(parts, fmt.Sprintf("%v", L.ToNumber(i)))
		case L.IsString(i):
			parts = append(parts, L.ToString(i))
		default:
			L.GetGlobal("tostring")
			L.PushValue(i)
			L.Call(1, 1)
			parts = append(parts, L.ToString(-1))
			L.Pop(1)
		}
	}
	m.write(strings.Join(parts, "\t"))
	return 0
}

func (m *macroRun) write(line string) {
	overwrites, err := m.runner.transcript.EnqueueM(OutputRecord{Slot: m.slot, Content: line, Timestamp: time.Now()})
	if err != nil {
		m.runner.logger.WithField("error", err).Warn("Macro output lost")
		return
	}
	m.runner.dropped.Add(int64(overwrites))
}
