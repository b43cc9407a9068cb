package journal

import (
	"encoding/base64"
	"regexp"
	"unicode/utf8"
)

// BinaryMode governs how a binary field value is rendered as text.
type BinaryMode int

const (
	// ModeLossy strips ANSI escape sequences, then decodes the result as
	// UTF-8 with invalid sequences replaced. This is the default, matching
	// the behaviour of systemd's own journal tooling.
	ModeLossy BinaryMode = iota
	// ModeBase64 prefixes the standard base64 encoding with "base64:".
	ModeBase64
)

// Value is a tagged variant: a field is either text or binary, never both.
type Value struct {
	binary bool
	text   string
	blob   []byte
}

// Text builds a text field value.
func Text(s string) Value { return Value{text: s} }

// Binary builds a binary field value. b is not retained by reference;
// callers that construct values directly (as opposed to via ParseField,
// which already copies) should not assume otherwise.
func Binary(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{binary: true, blob: cp}
}

// IsBinary reports whether the value is the binary variant.
func (v Value) IsBinary() bool { return v.binary }

// Bytes returns the raw bytes for a binary value, or the UTF-8 bytes of a
// text value.
func (v Value) Bytes() []byte {
	if v.binary {
		return v.blob
	}
	return []byte(v.text)
}

// String renders the value as text per mode. Text values pass through
// verbatim regardless of mode.
func (v Value) String(mode BinaryMode) string {
	if !v.binary {
		return v.text
	}
	switch mode {
	case ModeBase64:
		return "base64:" + base64.StdEncoding.EncodeToString(v.blob)
	default:
		return lossyString(v.blob)
	}
}

// csiEscape matches ANSI CSI sequences: ESC '[' then parameter/intermediate
// bytes (0x30-0x3F, 0x20-0x2F) terminated by a final byte (0x40-0x7E).
// This covers SGR colour codes and cursor movement, the sequences journal
// messages from terminal-attached services actually emit.
var csiEscape = regexp.MustCompile("\x1b\\[[0-9:;<=>?]*[ -/]*[@-~]")

func stripANSI(b []byte) []byte {
	return csiEscape.ReplaceAll(b, nil)
}

func lossyString(b []byte) string {
	stripped := stripANSI(b)
	if utf8.Valid(stripped) {
		return string(stripped)
	}
	// Decode with replacement, matching String.from_utf8_lossy semantics:
	// walk the bytes, substituting U+FFFD for invalid sequences.
	buf := make([]rune, 0, len(stripped))
	for len(stripped) > 0 {
		r, size := utf8.DecodeRune(stripped)
		buf = append(buf, r)
		stripped = stripped[size:]
	}
	return string(buf)
}
