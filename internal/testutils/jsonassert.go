//go:build test

package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// AnyValue in expected JSON matches whatever the actual document holds at
// that position, as long as the key is present.
const AnyValue = "<<ANY>>"

type JSONAssertOptions struct {
	// IgnoredFields are object keys dropped from both documents at any depth.
	IgnoredFields []string
	// AllowAnyValue enables the AnyValue placeholder.
	AllowAnyValue bool `default:"true"`
}

type JSONOption func(*JSONAssertOptions)

func WithIgnoredFields(fields ...string) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoredFields = append(o.IgnoredFields, fields...) }
}

// JSONAsserter compares --format json command output structurally, so key
// order and indentation never matter.
type JSONAsserter struct {
	t    TestingT
	opts JSONAssertOptions
}

func NewJSONAsserter(t TestingT) *JSONAsserter {
	ja := &JSONAsserter{t: t}
	defaults.SetDefaults(&ja.opts)
	return ja
}

func (ja *JSONAsserter) WithOptions(opts ...JSONOption) *JSONAsserter {
	for _, opt := range opts {
		opt(&ja.opts)
	}
	return ja
}

func (ja *JSONAsserter) Assert(actual, expected string) bool {
	ja.t.Helper()
	if diff := ja.Diff(actual, expected); diff != "" {
		ja.t.Errorf("JSON mismatch:\n%s", diff)
		return false
	}
	return true
}

// Diff returns a readable delta, or "" when the documents are equivalent.
func (ja *JSONAsserter) Diff(actual, expected string) string {
	var want, got interface{}
	if err := json.Unmarshal([]byte(expected), &want); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actual), &got); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v\n%s", err, actual)
	}

	// gojsondiff compares objects only
	want = map[string]interface{}{"document": want}
	got = map[string]interface{}{"document": got}

	if ja.opts.AllowAnyValue {
		fillAnyValues(want, got)
	}
	for _, field := range ja.opts.IgnoredFields {
		dropField(want, field)
		dropField(got, field)
	}

	wantBytes, _ := json.Marshal(want)
	gotBytes, _ := json.Marshal(got)
	delta, err := gojsondiff.New().Compare(wantBytes, gotBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !delta.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(want, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, err := f.Format(delta)
	if err != nil {
		return fmt.Sprintf("documents differ (format failed: %v)", err)
	}
	return out
}

// fillAnyValues copies actual values over AnyValue placeholders.
func fillAnyValues(want, got interface{}) {
	switch w := want.(type) {
	case map[string]interface{}:
		g, ok := got.(map[string]interface{})
		if !ok {
			return
		}
		for k, v := range w {
			actual, present := g[k]
			if s, isStr := v.(string); isStr && s == AnyValue && present {
				w[k] = actual
				continue
			}
			fillAnyValues(v, actual)
		}
	case []interface{}:
		g, ok := got.([]interface{})
		if !ok {
			return
		}
		for i := range w {
			if i >= len(g) {
				return
			}
			if s, isStr := w[i].(string); isStr && s == AnyValue {
				w[i] = g[i]
				continue
			}
			fillAnyValues(w[i], g[i])
		}
	}
}

func dropField(doc interface{}, field string) {
	switch d := doc.(type) {
	case map[string]interface{}:
		delete(d, field)
		for _, v := range d {
			dropField(v, field)
		}
	case []interface{}:
		for _, v := range d {
			dropField(v, field)
		}
	}
}
