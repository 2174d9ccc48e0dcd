// Package normalize turns the JavaScript array literals embedded in the
// source site's feeds into strict JSON.
//
// A feed body looks like
//
//	var data = [{id:1,name:'Travel',purl:'s1.photo.163.com/...'}];
//
// with unquoted keys, single-quoted strings and a trailing semicolon,
// sometimes surrounded by other script or HTML. Two extraction strategies
// exist because the site serves two variants of the same feed:
//
//   - split: everything from the first "=[" to the last "]"
//   - bracket: the first "[ {...} ]" group, matched non-greedily; a feed
//     holding no objects at all is accepted when it assigns an empty "[]"
//
// FormatAuto tries split first and falls back to bracket.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	errs "photobackup/pkg/errors"
)

// Format selects the array extraction strategy
type Format string

const (
	FormatAuto    Format = "auto"
	FormatSplit   Format = "split"
	FormatBracket Format = "bracket"
)

type strategy struct {
	format  Format
	extract func(raw string) (string, bool)
	// escapeBackslashes doubles stray backslashes; only the split variant
	// carries raw Windows-style paths in its strings.
	escapeBackslashes bool
}

var (
	splitStrategy   = strategy{format: FormatSplit, extract: extractSplit, escapeBackslashes: true}
	bracketStrategy = strategy{format: FormatBracket, extract: extractBracket}

	bracketPattern = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)
	emptyPattern   = regexp.MustCompile(`=\s*\[\s*\]`)
)

// Normalizer converts feed bodies to JSON
type Normalizer struct {
	format     Format
	strategies []strategy
}

// New creates a Normalizer for the given format. An empty format means auto.
func New(format Format) (*Normalizer, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatAuto, "":
		return &Normalizer{format: FormatAuto, strategies: []strategy{splitStrategy, bracketStrategy}}, nil
	case FormatSplit:
		return &Normalizer{format: FormatSplit, strategies: []strategy{splitStrategy}}, nil
	case FormatBracket:
		return &Normalizer{format: FormatBracket, strategies: []strategy{bracketStrategy}}, nil
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
}

// Format returns the configured format
func (n *Normalizer) Format() Format {
	return n.format
}

// Normalize returns the array literal in raw as JSON text. It fails with a
// malformed_payload error when no strategy finds an array boundary.
func (n *Normalizer) Normalize(raw string) (string, error) {
	for _, s := range n.strategies {
		if out, ok := s.apply(raw); ok {
			return out, nil
		}
	}
	return "", errs.New(errs.ErrorTypeMalformedPayload, "no array literal found (format %s)", n.format)
}

// Decode normalizes raw and decodes it into a slice of T. In auto mode a
// payload the decoder rejects is retried with the next strategy.
func Decode[T any](n *Normalizer, raw string) ([]T, error) {
	var lastErr error
	found := false

	for _, s := range n.strategies {
		text, ok := s.apply(raw)
		if !ok {
			continue
		}
		found = true

		var out []T
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			lastErr = errs.Wrap(errs.ErrorTypeMalformedPayload, err, "decode %s payload", s.format)
			continue
		}
		if out == nil {
			out = []T{}
		}
		return out, nil
	}

	if !found {
		return nil, errs.New(errs.ErrorTypeMalformedPayload, "no array literal found (format %s)", n.format)
	}
	return nil, lastErr
}

func (s strategy) apply(raw string) (string, bool) {
	body, ok := s.extract(raw)
	if !ok {
		return "", false
	}
	return rewrite(body, s.escapeBackslashes), true
}

func extractSplit(raw string) (string, bool) {
	start := strings.Index(raw, "=[")
	if start < 0 {
		return "", false
	}
	body := raw[start+1:]

	end := strings.LastIndex(body, "]")
	if end < 0 {
		return "", false
	}
	return trimTerminator(body[:end+1]), true
}

func extractBracket(raw string) (string, bool) {
	if loc := bracketPattern.FindStringIndex(raw); loc != nil {
		return trimTerminator(raw[loc[0]:loc[1]]), true
	}
	if emptyPattern.MatchString(raw) {
		return "[]", true
	}
	return "", false
}

func trimTerminator(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "; \t\r\n")
}

// rewrite walks the literal once, converting strings to JSON strings and
// quoting bare keys that follow '{' or ','.
func rewrite(src string, escapeBackslashes bool) string {
	var b strings.Builder
	b.Grow(len(src) + len(src)/8)

	expectKey := false
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			i = writeString(&b, src, i, escapeBackslashes)
			expectKey = false
		case c == '{' || c == ',':
			b.WriteByte(c)
			i++
			expectKey = true
		case isSpace(c):
			b.WriteByte(c)
			i++
		case expectKey && isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			k := j
			for k < len(src) && isSpace(src[k]) {
				k++
			}
			if k < len(src) && src[k] == ':' {
				b.WriteByte('"')
				b.WriteString(src[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(src[i:j])
			}
			i = j
			expectKey = false
		default:
			b.WriteByte(c)
			i++
			expectKey = false
		}
	}
	return b.String()
}

// writeString copies the string literal starting at src[start] as a JSON
// string and returns the index just past its closing quote.
func writeString(b *strings.Builder, src string, start int, escapeBackslashes bool) int {
	quote := src[start]
	b.WriteByte('"')

	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			b.WriteByte('"')
			return i + 1
		case c == '\\':
			if i+1 >= len(src) {
				b.WriteString(`\\`)
				return len(src)
			}
			next := src[i+1]
			switch {
			case next == '\\':
				b.WriteString(`\\`)
			case next == '\'':
				b.WriteByte('\'')
			case next == '"':
				b.WriteString(`\"`)
			case escapeBackslashes:
				b.WriteString(`\\`)
				b.WriteByte(next)
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i += 2
		case c == '"':
			b.WriteString(`\"`)
			i++
		case c < 0x20:
			fmt.Fprintf(b, `\u%04x`, c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	// Unterminated literal; the decoder reports it.
	return len(src)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
