package stream

import (
	"fmt"
	"os"
)

// Mode is a parsed open mode such as "r", "wb", "a+t".
type Mode struct {
	Read   bool
	Write  bool
	Append bool
	Plus   bool
	Text   bool
	spec   string
}

// ParseMode parses a mode string. Exactly one of 'r', 'w', 'a' is required;
// 'b' or 't' and '+' may each appear once. Binary is the default codec.
func ParseMode(spec string) (Mode, error) {
	m := Mode{spec: spec}
	var seen [256]bool
	access, codec := 0, 0
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if seen[c] {
			return Mode{}, fmt.Errorf("%w: %q repeats %q", ErrBadMode, spec, c)
		}
		seen[c] = true
		switch c {
		case 'r':
			m.Read = true
			access++
		case 'w':
			m.Write = true
			access++
		case 'a':
			m.Append = true
			access++
		case '+':
			m.Plus = true
		case 'b':
			codec++
		case 't':
			m.Text = true
			codec++
		default:
			return Mode{}, fmt.Errorf("%w: %q has illegal character %q", ErrBadMode, spec, c)
		}
	}
	if access != 1 || codec > 1 {
		return Mode{}, fmt.Errorf("%w: %q", ErrBadMode, spec)
	}
	return m, nil
}

func (m Mode) String() string {
	return m.spec
}

// CanRead is true for "r" and any "+" mode.
func (m Mode) CanRead() bool {
	return m.Read || m.Plus
}

// CanWrite is true for "w", "a" and any "+" mode.
func (m Mode) CanWrite() bool {
	return m.Write || m.Append || m.Plus
}

func (m Mode) openFlags() int {
	switch {
	case m.Read && m.Plus:
		return os.O_RDWR
	case m.Read:
		return os.O_RDONLY
	case m.Write && m.Plus:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC
	case m.Write:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case m.Append && m.Plus:
		return os.O_RDWR | os.O_CREATE | os.O_APPEND
	default:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
}
