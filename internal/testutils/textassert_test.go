package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingT captures failures instead of failing the enclosing test.
type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestTextAsserterStripsTerminalArtifacts(t *testing.T) {
	// GOAL: colored raw-mode output compares equal to its plain rendering
	rec := &recordingT{}
	red := color.New(color.FgRed)
	red.EnableColor()

	actual := "State " + red.Sprint("Ready") + "\r\nSent KEY:ENTER\r\n"
	ok := NewTextAsserter(rec).Assert(actual, "State Ready\nSent KEY:ENTER\n")

	assert.True(t, ok)
	assert.Empty(t, rec.failures, "ANSI escapes and CRLF MUST be normalized by default")
}

func TestTextAsserterRawOutput(t *testing.T) {
	rec := &recordingT{}
	ok := NewTextAsserter(rec).WithOptions(WithRawOutput()).Assert("a\r\nb", "a\nb")

	assert.False(t, ok, "raw comparison MUST see the carriage return")
	require.Len(t, rec.failures, 1)
}

func TestTextAsserterWhitespaceOptions(t *testing.T) {
	table := "\nSLOT  LABEL  \nM1    Lock\n\n"
	tests := []struct {
		name     string
		opts     []TextOption
		expected string
		match    bool
	}{
		{"exact", nil, "SLOT  LABEL\nM1    Lock", false},
		{"trim and trailing", []TextOption{WithTrimSpace(true), WithIgnoreTrailingWhitespace(true)}, "SLOT  LABEL\nM1    Lock", true},
		{"empty lines", []TextOption{WithIgnoreEmptyLines(true), WithIgnoreTrailingWhitespace(true)}, "SLOT  LABEL\nM1    Lock", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := NewTextAsserter(&recordingT{}).WithOptions(tt.opts...)
			assert.Equal(t, tt.match, ta.Diff(table, tt.expected) == "")
		})
	}
}

func TestTextAsserterDiffReport(t *testing.T) {
	// TEST SCENARIO: one changed row → unified diff names both versions of it
	rec := &recordingT{}
	NewTextAsserter(rec).Assert("M1 Lock\nM2 Mute\n", "M1 Lock\nM2 Volume\n")

	require.Len(t, rec.failures, 1)
	report := rec.failures[0]
	assert.Contains(t, report, "--- expected")
	assert.Contains(t, report, "+++ actual")
	assert.Contains(t, report, "-M2 Volume")
	assert.Contains(t, report, "+M2 Mute")
}

func TestTextAsserterColorDiff(t *testing.T) {
	diff := NewTextAsserter(&recordingT{}).WithOptions(WithColorDiff(true)).Diff("a b\n", "a  b\n")

	assert.Contains(t, diff, "\x1b[31m", "removed lines MUST be red")
	assert.Contains(t, diff, "\x1b[32m", "added lines MUST be green")
	assert.True(t, strings.Contains(diff, "a··b"), "whitespace MUST be made visible")
}
