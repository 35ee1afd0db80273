package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/sensor"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Interactive keyboard and mouse session",
	Long: `Put the terminal in raw mode and forward keystrokes to the accessory.
Function keys toggle the gyro mouse, proximity lock and anti-sleep features.
Connection state and the engine log feed are printed as they change.

` + sessionHelp,
	Args: cobra.NoArgs,
	RunE: runSession,
}

var (
	sessionStep     int
	sessionMoveRate float64
	sessionGyroFile string
)

func init() {
	sessionCmd.Flags().IntVar(&sessionStep, "step", 10, "Pointer distance per arrow key")
	sessionCmd.Flags().Float64Var(&sessionMoveRate, "move-rate", 50, "Maximum pointer moves per second from held arrow keys")
	sessionCmd.Flags().StringVar(&sessionGyroFile, "gyro", "", "Rotation recording that F1 replays through the gyro mouse")
}

var (
	stateColors = map[engine.ConnectionState]*color.Color{
		engine.StateReady:            color.New(color.FgGreen, color.Bold),
		engine.StateScanning:         color.New(color.FgYellow),
		engine.StateConnecting:       color.New(color.FgYellow),
		engine.StateDiscovering:      color.New(color.FgYellow),
		engine.StateDisconnecting:    color.New(color.FgYellow),
		engine.StateRadioUnavailable: color.New(color.FgRed),
		engine.StateIdle:             color.New(color.FgWhite),
	}
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	faintColor = color.New(color.Faint)
)

func runSession(cmd *cobra.Command, _ []string) error {
	if sessionStep <= 0 {
		return fmt.Errorf("invalid step %d: must be positive", sessionStep)
	}
	if sessionMoveRate <= 0 {
		return fmt.Errorf("invalid move rate %g: must be positive", sessionMoveRate)
	}
	var motion sensor.Source
	if sessionGyroFile != "" {
		src, err := sensor.LoadReplayFile(sessionGyroFile)
		if err != nil {
			return err
		}
		motion = src
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("session needs an interactive terminal")
	}

	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{Motion: motion, NoWait: true}, func(ctx context.Context, s *session) error {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, oldState) }()

		ui := &sessionUI{
			out:     cmd.OutOrStdout(),
			s:       s,
			limiter: rate.NewLimiter(rate.Limit(sessionMoveRate), int(sessionMoveRate/5)+1),
		}
		return ui.run(ctx, os.Stdin)
	})
}

// sessionUI renders engine events and dispatches keystrokes in raw mode.
type sessionUI struct {
	out     io.Writer
	s       *session
	limiter *rate.Limiter
}

// println writes a line; raw mode needs an explicit carriage return.
func (u *sessionUI) println(line string) {
	fmt.Fprint(u.out, strings.ReplaceAll(line, "\n", "\r\n")+"\r\n")
}

func (u *sessionUI) run(ctx context.Context, in io.Reader) error {
	keys := make(chan []byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 64)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case keys <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	u.println(sessionHelp)
	u.println(formatState(u.s.engine.State(), ""))

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-keys:
			if !ok {
				return nil
			}
			for _, a := range decodeKeys(data, sessionStep) {
				if a.Control == ctlQuit {
					return nil
				}
				u.handle(ctx, a)
			}
		case ev, ok := <-u.s.events:
			if !ok {
				return nil
			}
			if line, show := formatEvent(ev); show {
				u.println(line)
			}
		}
	}
}

func (u *sessionUI) handle(ctx context.Context, a keyAction) {
	eng := u.s.engine
	var err error
	switch a.Control {
	case ctlNone:
		if a.isMove() && !u.limiter.Allow() {
			return
		}
		err = eng.Send(a.Command)
	case ctlToggleConnection:
		err = eng.ToggleConnection(ctx)
	case ctlToggleFeature:
		err = eng.ToggleFeature(ctx, a.Feature)
	case ctlLock:
		err = eng.Lock()
	case ctlCloseApp:
		err = eng.CloseApp()
	case ctlTypeEmail:
		err = eng.TypeEmail(ctx)
	case ctlHelp:
		u.println(sessionHelp)
	}
	if err != nil {
		u.println(errorColor.Sprint(FormatUserError(err)))
	}
}

func formatState(state engine.ConnectionState, address string) string {
	c, ok := stateColors[state]
	if !ok {
		c = color.New(color.Reset)
	}
	label := c.Sprintf("[%s]", state)
	if address != "" {
		return label + " " + address
	}
	return label
}

// formatEvent renders an engine event as a session line.
func formatEvent(ev engine.Event) (string, bool) {
	switch ev := ev.(type) {
	case engine.StateChanged:
		return formatState(ev.To, ev.Address), true
	case engine.LogAppended:
		line := ev.Entry.Time.Format("15:04:05") + " " + ev.Entry.Message
		switch {
		case ev.Entry.Level <= logrus.ErrorLevel:
			return errorColor.Sprint(line), true
		case ev.Entry.Level == logrus.WarnLevel:
			return warnColor.Sprint(line), true
		}
		return line, true
	case engine.FeatureChanged:
		status := "off"
		if ev.Active {
			status = "on"
		}
		return faintColor.Sprintf("%s %s", ev.Feature, status), true
	case engine.SignalStrength:
		return faintColor.Sprintf("signal %d dBm", ev.RSSI), true
	}
	return "", false
}
