// Package slug normalizes free text into URL-safe identifiers.
package slug

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSeparator joins words in a slug unless overridden.
const DefaultSeparator = "-"

// Letters that survive NFKD decomposition unchanged but have a common ASCII spelling.
var foldings = map[rune]string{
	'ß': "ss",
	'æ': "ae",
	'œ': "oe",
	'ø': "o",
	'ł': "l",
	'đ': "d",
	'ð': "d",
	'þ': "th",
	'ı': "i",
}

type options struct {
	separator string
	maxLength int
}

// Option customizes Make.
type Option func(*options)

// Separator sets the string placed between words.
func Separator(sep string) Option {
	return func(o *options) {
		o.separator = sep
	}
}

// MaxLength limits the slug to n runes. Zero disables the limit.
func MaxLength(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxLength = n
		}
	}
}

// Make converts s into a lowercase ASCII slug. Runs of anything that is not a
// letter or digit collapse into a single separator and separators never lead or
// trail the result. Input without alphanumeric content yields "".
func Make(s string, opts ...Option) string {
	cfg := options{separator: DefaultSeparator}
	for _, opt := range opts {
		opt(&cfg)
	}

	folded := fold(s)

	var b strings.Builder
	b.Grow(len(folded))
	pending := false

	for _, r := range strings.ToLower(folded) {
		var part string
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			part = string(r)
		default:
			part = foldings[r]
		}

		if part == "" {
			pending = true
			continue
		}

		if pending && b.Len() > 0 {
			b.WriteString(cfg.separator)
		}
		pending = false
		b.WriteString(part)
	}

	return Truncate(b.String(), cfg.maxLength, cfg.separator)
}

// Truncate cuts s to at most limit runes and strips any separator left dangling
// at the end. A limit of zero or less returns s unchanged.
func Truncate(s string, limit int, sep string) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	cut := []rune(s)[:limit]
	return TrimSeparator(string(cut), sep)
}

// TrimSeparator removes every leading and trailing occurrence of sep from s.
func TrimSeparator(s, sep string) string {
	if sep == "" {
		return s
	}
	for strings.HasPrefix(s, sep) {
		s = s[len(sep):]
	}
	for strings.HasSuffix(s, sep) {
		s = s[:len(s)-len(sep)]
	}
	return s
}

// Valid reports whether s is a non-empty slug made of lowercase ASCII letters,
// digits and hyphens.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
