package permission

import (
	"errors"
	"fmt"
)

const (
	codenameMinLen = 3
	codenameMaxLen = 64
)

// ErrCodenameInvalid is returned by ParseCodename for malformed input.
var ErrCodenameInvalid = errors.New("invalid permission codename")

// Codename is the stable identifier of a permission, e.g. "edit_content" or
// "reports.view". Values are constructed through ParseCodename so that a
// typo'd or malformed codename fails at construction instead of silently
// matching nothing at check time.
type Codename string

// ParseCodename validates s and returns it as a Codename. A codename is
// 3..64 bytes, starts with a lowercase letter, and contains only lowercase
// letters, digits, underscores, and dots.
func ParseCodename(s string) (Codename, error) {
	if len(s) < codenameMinLen || len(s) > codenameMaxLen {
		return "", fmt.Errorf("%w: %q", ErrCodenameInvalid, s)
	}
	if s[0] < 'a' || s[0] > 'z' {
		return "", fmt.Errorf("%w: %q", ErrCodenameInvalid, s)
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '.':
		default:
			return "", fmt.Errorf("%w: %q", ErrCodenameInvalid, s)
		}
	}
	return Codename(s), nil
}

// MustCodename is ParseCodename for static wiring; it panics on invalid input.
func MustCodename(s string) Codename {
	c, err := ParseCodename(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Codename) String() string {
	return string(c)
}
