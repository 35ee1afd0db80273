package testutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the subset of *testing.T the asserter reports through.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// TextAssertOptions controls how CLI output is normalized before comparison.
type TextAssertOptions struct {
	// StripANSI removes color escapes written by fatih/color.
	StripANSI bool `default:"true"`
	// NormalizeNewlines turns CRLF from raw-mode terminals into LF.
	NormalizeNewlines        bool `default:"true"`
	TrimSpace                bool `default:"false"`
	IgnoreTrailingWhitespace bool `default:"false"`
	IgnoreEmptyLines         bool `default:"false"`
	ColorDiff                bool `default:"false"`
}

type TextOption func(*TextAssertOptions)

func WithTrimSpace(on bool) TextOption {
	return func(o *TextAssertOptions) { o.TrimSpace = on }
}

func WithIgnoreTrailingWhitespace(on bool) TextOption {
	return func(o *TextAssertOptions) { o.IgnoreTrailingWhitespace = on }
}

func WithIgnoreEmptyLines(on bool) TextOption {
	return func(o *TextAssertOptions) { o.IgnoreEmptyLines = on }
}

// WithRawOutput compares bytes as written, escapes and carriage returns included.
func WithRawOutput() TextOption {
	return func(o *TextAssertOptions) {
		o.StripANSI = false
		o.NormalizeNewlines = false
	}
}

func WithColorDiff(on bool) TextOption {
	return func(o *TextAssertOptions) { o.ColorDiff = on }
}

// TextAsserter compares command output against an expected listing and
// reports a unified diff on mismatch.
type TextAsserter struct {
	t    TestingT
	opts TextAssertOptions
}

func NewTextAsserter(t TestingT) *TextAsserter {
	ta := &TextAsserter{t: t}
	defaults.SetDefaults(&ta.opts)
	return ta
}

func (ta *TextAsserter) WithOptions(opts ...TextOption) *TextAsserter {
	for _, opt := range opts {
		opt(&ta.opts)
	}
	return ta
}

// Assert fails the test when actual and expected differ after normalization.
func (ta *TextAsserter) Assert(actual, expected string) bool {
	ta.t.Helper()
	if diff := ta.Diff(actual, expected); diff != "" {
		ta.t.Errorf("output mismatch (-expected +actual):\n%s", diff)
		return false
	}
	return true
}

// Diff returns the unified diff of the normalized texts, or "" when they match.
func (ta *TextAsserter) Diff(actual, expected string) string {
	want, got := ta.Normalize(expected), ta.Normalize(actual)
	if want == got {
		return ""
	}
	edits := myers.ComputeEdits("", want, got)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", want, edits))
	if !ta.opts.ColorDiff {
		return unified
	}
	return colorize(unified)
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// Normalize applies the configured options to text.
func (ta *TextAsserter) Normalize(text string) string {
	if ta.opts.StripANSI {
		text = ansiEscape.ReplaceAllString(text, "")
	}
	if ta.opts.NormalizeNewlines {
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}
	if ta.opts.TrimSpace {
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if ta.opts.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		if ta.opts.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func colorize(diff string) string {
	paint := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		c.EnableColor()
		return c
	}
	removed, added, hunk := paint(color.FgRed), paint(color.FgGreen), paint(color.FgCyan)

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunk.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removed.Sprint(visibleSpace(line))
		case strings.HasPrefix(line, "+"):
			lines[i] = added.Sprint(visibleSpace(line))
		}
	}
	return strings.Join(lines, "\n")
}

// visibleSpace marks blanks so whitespace-only differences can be seen.
func visibleSpace(line string) string {
	return strings.NewReplacer(" ", "·", "\t", "→").Replace(line)
}
