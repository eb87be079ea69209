package cmdline

import (
	"strings"
	"unicode/utf16"

	"github.com/Paintersrp/procctl/internal/rterr"
)

// MaxCommandLine is the largest Windows command line in UTF-16 code units,
// terminating NUL included.
const MaxCommandLine = 32768

const extendedPrefix = `\\?\`

// Line is a NUL terminated UTF-16 command line.
type Line []uint16

// Ptr returns a pointer suitable for CreateProcessW.
func (l Line) Ptr() *uint16 {
	if len(l) == 0 {
		return nil
	}
	return &l[0]
}

// String decodes the line without its terminating NUL.
func (l Line) String() string {
	n := len(l)
	if n > 0 && l[n-1] == 0 {
		n--
	}
	return string(utf16.Decode(l[:n]))
}

// Len reports the number of code units before the terminating NUL.
func (l Line) Len() int {
	if len(l) == 0 {
		return 0
	}
	return len(l) - 1
}

// lineBuffer is a fixed capacity UTF-16 buffer. Any write that does not fit
// marks it full and every later write fails.
type lineBuffer struct {
	units []uint16
	full  bool
}

func (b *lineBuffer) put(units ...uint16) bool {
	if b.full || len(b.units)+len(units) > MaxCommandLine {
		b.full = true
		return false
	}
	b.units = append(b.units, units...)
	return true
}

func (b *lineBuffer) repeat(unit uint16, n int) bool {
	if b.full || len(b.units)+n > MaxCommandLine {
		b.full = true
		return false
	}
	for i := 0; i < n; i++ {
		b.units = append(b.units, unit)
	}
	return true
}

// WindowsCommandLine builds the command line for CreateProcessW. The command
// is always quoted; an argument is quoted only when it contains a space, a
// control or non ASCII character, or a double quote. The result parses back
// into the same argument list under the Microsoft C runtime rules.
func WindowsCommandLine(command string, args []string) (Line, error) {
	if strings.IndexByte(command, 0) >= 0 {
		return nil, rterr.Range("encode command line", errNUL)
	}
	cmd := utf16.Encode([]rune(strings.TrimPrefix(command, extendedPrefix)))

	buf := &lineBuffer{units: make([]uint16, 0, 256)}
	buf.put('"')
	buf.put(cmd...)
	buf.put('"')

	for _, arg := range args {
		if strings.IndexByte(arg, 0) >= 0 {
			return nil, rterr.Range("encode command line", errNUL)
		}
		units := utf16.Encode([]rune(arg))
		if needsQuoting(units) {
			buf.put(' ', '"')
			putQuoted(buf, units)
			buf.put('"')
		} else {
			buf.put(' ')
			buf.put(units...)
		}
		if buf.full {
			break
		}
	}
	if !buf.put(0) {
		return nil, rterr.Memory("encode command line", nil)
	}
	return Line(buf.units), nil
}

func needsQuoting(units []uint16) bool {
	for _, c := range units {
		if c <= ' ' || c > '~' || c == '"' {
			return true
		}
	}
	return false
}

// putQuoted writes the body of a quoted argument. Runs of backslashes are
// doubled when a double quote or the closing quote follows them, and every
// double quote is escaped with one backslash.
func putQuoted(buf *lineBuffer, units []uint16) {
	for i := 0; i < len(units) && !buf.full; i++ {
		switch c := units[i]; c {
		case '"':
			buf.put('\\', '"')
		case '\\':
			run := 1
			for i+run < len(units) && units[i+run] == '\\' {
				run++
			}
			i += run - 1
			if i+1 == len(units) || units[i+1] == '"' {
				buf.repeat('\\', 2*run)
			} else {
				buf.repeat('\\', run)
			}
		default:
			buf.put(c)
		}
	}
}
