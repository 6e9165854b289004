package payload

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var closers = map[byte]byte{'{': '}', '[': ']'}

// SliceAssignment finds the first `window.<name>` in script and returns the
// JSON object or array assigned to it, cut out of whatever code surrounds it.
//
// The scan tracks bracket nesting and double-quoted strings (with backslash
// escapes); brackets inside strings are inert. Single-quoted strings, template
// literals and comments are not understood. A closing bracket that does not
// match the innermost open one, or running off the end, reports false.
func SliceAssignment(script, name string) (string, bool) {
	idx := strings.Index(script, "window."+name)
	if idx < 0 {
		return "", false
	}
	eq := strings.IndexByte(script[idx:], '=')
	if eq < 0 {
		return "", false
	}
	start := idx + eq + 1
	for start < len(script) {
		r, size := utf8.DecodeRuneInString(script[start:])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	if start >= len(script) {
		return "", false
	}
	closing, ok := closers[script[start]]
	if !ok {
		return "", false
	}

	stack := []byte{closing}
	inString, escaped := false, false
	for pos := start + 1; pos < len(script); pos++ {
		ch := script[pos]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, closers[ch])
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return script[start : pos+1], true
			}
		}
	}
	return "", false
}

// Locate scans the inline scripts of doc for a `window.<name>` assignment and
// decodes the first one that slices and parses cleanly. A miss is not an
// error: the caller falls back to reading the DOM.
func Locate(doc *goquery.Document, name string) (Value, bool) {
	marker := "window." + name
	var (
		found Value
		ok    bool
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, marker) {
			return true
		}
		blob, sliced := SliceAssignment(text, name)
		if !sliced {
			slog.Debug("payload: unbalanced assignment", "var", marker)
			return true
		}
		v, err := Decode([]byte(blob))
		if err != nil {
			slog.Debug("payload: failed to decode", "var", marker, "error", err)
			return true
		}
		slog.Debug("payload: decoded", "var", marker, "chars", len(blob))
		found, ok = v, true
		return false
	})
	if !ok {
		slog.Debug("payload: not found in page scripts", "var", marker)
	}
	return found, ok
}
