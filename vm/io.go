package vm

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// textInput wraps a Pascal text file's read-ahead discipline: the next
// unread byte is always available via Peek without being consumed,
// mirroring the original's store-resident file-buffer variable
// (input^/prd^, read by p4_file_peek in original_source/p4_vm/p4_file.c).
// A newline in the underlying stream reads back as a single space, the
// same folding original_source's readc/getfile apply.
type textInput struct {
	r *bufio.Reader
}

func newTextInput(r io.Reader) *textInput {
	return &textInput{r: bufio.NewReader(r)}
}

// SetInput attaches r as the machine's standard `input` text file. Without
// a call to SetInput, eof/eoln on input report true and readln/get do
// nothing, while read (rdi/rdr/rdc) traps.
func (m *Machine) SetInput(r io.Reader) { m.Input = newTextInput(r) }

// SetPrd attaches r as the machine's `prd` auxiliary input file.
func (m *Machine) SetPrd(r io.Reader) { m.Prd = newTextInput(r) }

// Peek returns the next unread byte without consuming it, folding '\n' to
// ' ' and end-of-stream to ' ' (callers check Eof separately, matching
// p4_file_peek's behavior of returning a blank at eof).
func (f *textInput) Peek() byte {
	b, err := f.r.Peek(1)
	if err != nil {
		return ' '
	}
	if b[0] == '\n' {
		return ' '
	}
	return b[0]
}

func (f *textInput) Eof() bool {
	_, err := f.r.Peek(1)
	return err != nil
}

func (f *textInput) Eoln() bool {
	b, err := f.r.Peek(1)
	return err != nil || b[0] == '\n'
}

// Advance consumes one byte (folding '\n' to ' ') and returns it.
func (f *textInput) Advance() byte {
	b, err := f.r.ReadByte()
	if err != nil {
		return ' '
	}
	if b == '\n' {
		return ' '
	}
	return b
}

// SkipLine consumes through and including the next newline (rln).
func (f *textInput) SkipLine() {
	for {
		b, err := f.r.ReadByte()
		if err != nil || b == '\n' {
			return
		}
	}
}

func (f *textInput) skipSpace() {
	for {
		b, err := f.r.Peek(1)
		if err != nil || (b[0] != ' ' && b[0] != '\t' && b[0] != '\n') {
			return
		}
		f.r.ReadByte()
	}
}

// ReadInt scans a (possibly signed) decimal integer, matching readi's
// "%ld" scanf. Malformed input yields 0, matching scanf's no-op-on-mismatch
// behavior in the original rather than trapping.
func (f *textInput) ReadInt() int64 {
	f.skipSpace()
	var sb strings.Builder
	if b := f.Peek(); b == '-' || b == '+' {
		sb.WriteByte(b)
		f.r.ReadByte()
	}
	for isDigit(f.peekRaw()) {
		b, _ := f.r.ReadByte()
		sb.WriteByte(b)
	}
	v, _ := strconv.ParseInt(sb.String(), 10, 64)
	return v
}

// ReadReal scans a real literal, matching readr's "%lg" scanf.
func (f *textInput) ReadReal() float64 {
	f.skipSpace()
	var sb strings.Builder
	if b := f.Peek(); b == '-' || b == '+' {
		sb.WriteByte(b)
		f.r.ReadByte()
	}
	for isDigit(f.peekRaw()) {
		b, _ := f.r.ReadByte()
		sb.WriteByte(b)
	}
	if f.peekRaw() == '.' {
		b, _ := f.r.ReadByte()
		sb.WriteByte(b)
		for isDigit(f.peekRaw()) {
			b, _ := f.r.ReadByte()
			sb.WriteByte(b)
		}
	}
	if c := f.peekRaw(); c == 'e' || c == 'E' {
		b, _ := f.r.ReadByte()
		sb.WriteByte(b)
		if s := f.peekRaw(); s == '+' || s == '-' {
			b, _ := f.r.ReadByte()
			sb.WriteByte(b)
		}
		for isDigit(f.peekRaw()) {
			b, _ := f.r.ReadByte()
			sb.WriteByte(b)
		}
	}
	v, _ := strconv.ParseFloat(sb.String(), 64)
	return v
}

// peekRaw peeks without the newline-to-space fold, so digit scanning stops
// cleanly at a real newline instead of misreading it as a separator.
func (f *textInput) peekRaw() byte {
	b, err := f.r.Peek(1)
	if err != nil {
		return 0
	}
	return b[0]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
