package classify

import (
	"strings"
	"unicode/utf8"
)

// Limits bounds the learned table and bulk imports.
type Limits struct {
	// MaxMappings caps distinct learned keys. Default: 500
	MaxMappings int
	// MaxKeyLength caps a learned key, in runes. Default: 100
	MaxKeyLength int
	// MaxImportLines caps the lines kept from one import. Default: 500
	MaxImportLines int
	// MaxLineLength caps one imported line, in runes. Default: 200
	MaxLineLength int
	// MaxImportBytes caps the raw import text. Default: 100 KiB
	MaxImportBytes int
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxMappings:    500,
		MaxKeyLength:   100,
		MaxImportLines: 500,
		MaxLineLength:  200,
		MaxImportBytes: 100 * 1024,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxMappings <= 0 {
		l.MaxMappings = d.MaxMappings
	}
	if l.MaxKeyLength <= 0 {
		l.MaxKeyLength = d.MaxKeyLength
	}
	if l.MaxImportLines <= 0 {
		l.MaxImportLines = d.MaxImportLines
	}
	if l.MaxLineLength <= 0 {
		l.MaxLineLength = d.MaxLineLength
	}
	if l.MaxImportBytes <= 0 {
		l.MaxImportBytes = d.MaxImportBytes
	}
	return l
}

// NormalizeKey lowercases, trims and truncates name to maxRunes.
func NormalizeKey(name string, maxRunes int) string {
	return truncateRunes(strings.TrimSpace(strings.ToLower(name)), maxRunes)
}

// SanitizeImport bounds pasted text: cut to MaxImportBytes on a rune
// boundary, split into lines, trim, cut each line to MaxLineLength runes,
// drop empty lines and keep the first MaxImportLines. It never fails.
func SanitizeImport(text string, l Limits) []string {
	l = l.withDefaults()
	text = truncateBytes(text, l.MaxImportBytes)

	lines := make([]string, 0, 16)
	for line := range strings.SplitSeq(text, "\n") {
		line = truncateRunes(strings.TrimSpace(line), l.MaxLineLength)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == l.MaxImportLines {
			break
		}
	}
	return lines
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
