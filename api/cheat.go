package ekcore

import (
	"errors"
	"fmt"
	"strings"
)

// CharacterSet is the alphabet a cheat code may use.
type CharacterSet uint8

const (
	CharsetHexadecimal CharacterSet = iota
)

// Allows reports whether r is in the character set.
func (c CharacterSet) Allows(r rune) bool {
	switch c {
	case CharsetHexadecimal:
		return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
	default:
		return false
	}
}

// CheatFormat declares a cheat code grammar supported by a core.
type CheatFormat struct {
	// ID is unique within a descriptor.
	ID          string
	DisplayName string
	Charset     CharacterSet
	// Pattern uses 'x' as the placeholder for one code character, every
	// other character must appear literally, e.g. "xxxxxx xxxx".
	Pattern string
}

// ErrCodeMismatch is returned by Validate when a code does not fit the format.
var ErrCodeMismatch = errors.New("cheat code does not match format")

// Validate checks a code against the pattern and character set. Codes are
// matched case-insensitively and surrounding whitespace is ignored.
func (f CheatFormat) Validate(code string) error {
	code = strings.TrimSpace(code)
	if f.Pattern == "" {
		for _, r := range code {
			if !f.Charset.Allows(r) {
				return fmt.Errorf("%w: %q not allowed in %s", ErrCodeMismatch, r, f.ID)
			}
		}
		if code == "" {
			return fmt.Errorf("%w: empty code", ErrCodeMismatch)
		}
		return nil
	}

	pattern := []rune(f.Pattern)
	runes := []rune(code)
	if len(runes) != len(pattern) {
		return fmt.Errorf("%w: %s expects %q", ErrCodeMismatch, f.ID, f.Pattern)
	}
	for i, p := range pattern {
		r := runes[i]
		if p == 'x' || p == 'X' {
			if !f.Charset.Allows(r) {
				return fmt.Errorf("%w: %q not allowed in %s", ErrCodeMismatch, r, f.ID)
			}
			continue
		}
		if r != p {
			return fmt.Errorf("%w: %s expects %q", ErrCodeMismatch, f.ID, f.Pattern)
		}
	}
	return nil
}

// Cheat is one user-supplied cheat.
type Cheat struct {
	Format  string
	Code    string
	Enabled bool
}

// Key identifies a cheat independent of its enabled flag.
func (c Cheat) Key() string {
	return c.Format + "\x00" + strings.ToUpper(strings.TrimSpace(c.Code))
}
