package ptyio

import (
	"strings"
	"unicode/utf8"

	"github.com/SinghProbjot/Synapse/internal/protocol"
)

const del = 0x7f

// TextDecoder turns a raw byte stream into complete UTF-8 text. A multi-byte
// sequence split across reads is held back until its remaining bytes arrive.
// Invalid bytes are dropped.
//
// Terminals send DEL for backspace and CR for enter; both are translated to
// what the accessory understands.
type TextDecoder struct {
	pending []byte
	dropped int
}

// Feed consumes p and returns the text that is complete so far.
func (d *TextDecoder) Feed(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	buf := append(d.pending, p...)
	d.pending = nil

	var sb strings.Builder
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 {
			if !utf8.FullRune(buf) {
				// incomplete tail, wait for more bytes
				d.pending = append([]byte(nil), buf...)
				break
			}
			d.dropped++
			buf = buf[1:]
			continue
		}
		buf = buf[size:]

		switch r {
		case del:
			r = protocol.Backspace
		case '\r':
			r = '\n'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Pending returns the number of bytes held back for an incomplete sequence.
func (d *TextDecoder) Pending() int {
	return len(d.pending)
}

// Dropped returns the number of invalid bytes discarded so far.
func (d *TextDecoder) Dropped() int {
	return d.dropped
}

// Reset discards any held-back bytes.
func (d *TextDecoder) Reset() {
	d.pending = nil
}
