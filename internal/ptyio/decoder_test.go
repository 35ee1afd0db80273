package ptyio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextDecoder_ASCII(t *testing.T) {
	var d TextDecoder
	assert.Equal(t, "hello", d.Feed([]byte("hello")))
	assert.Zero(t, d.Pending())
}

func TestTextDecoder_SplitSequence(t *testing.T) {
	var d TextDecoder
	euro := []byte("€") // 3 bytes

	assert.Equal(t, "a", d.Feed(append([]byte("a"), euro[0])))
	assert.Equal(t, 1, d.Pending(), "incomplete sequence MUST be held back")

	assert.Equal(t, "", d.Feed(euro[1:2]))
	assert.Equal(t, 2, d.Pending())

	assert.Equal(t, "€b", d.Feed(append(euro[2:], 'b')))
	assert.Zero(t, d.Pending())
}

func TestTextDecoder_TerminalControls(t *testing.T) {
	var d TextDecoder
	assert.Equal(t, "ab\b\n", d.Feed([]byte{'a', 'b', 0x7f, '\r'}),
		"DEL MUST become backspace and CR MUST become newline")
}

func TestTextDecoder_DropsInvalidBytes(t *testing.T) {
	var d TextDecoder
	assert.Equal(t, "ab", d.Feed([]byte{'a', 0xff, 'b'}))
	assert.Equal(t, 1, d.Dropped())
}

func TestTextDecoder_Reset(t *testing.T) {
	var d TextDecoder
	d.Feed([]byte{0xe2})
	d.Reset()
	assert.Zero(t, d.Pending())
	assert.Equal(t, "x", d.Feed([]byte("x")))
}
