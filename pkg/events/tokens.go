package events

import (
	"strings"
)

// Fields extracts the embedded key=value and key="value" tokens from a raw
// log message into a map. Keys and values are lower-cased so lookups are
// case-insensitive. A quoted value that is never closed is kept up to the end
// of the message; predicates over quoted tokens deliberately match on the
// opening quote only, so an unterminated quote is not an error here.
//
// If the same key appears more than once, the last occurrence wins.
func Fields(message string) map[string]string {
	fields := make(map[string]string)
	s := strings.ToLower(message)

	i := 0
	for i < len(s) {
		// find the start of a key
		start := i
		for i < len(s) && isKeyChar(s[i]) {
			i++
		}
		if i > start && i < len(s) && s[i] == '=' {
			key := s[start:i]
			i++ // consume '='
			var value string
			if i < len(s) && s[i] == '"' {
				i++
				end := strings.IndexByte(s[i:], '"')
				if end < 0 {
					value = s[i:]
					i = len(s)
				} else {
					value = s[i : i+end]
					i += end + 1
				}
			} else {
				end := i
				for end < len(s) && !isSpace(s[end]) {
					end++
				}
				value = s[i:end]
				i = end
			}
			fields[key] = value
			continue
		}
		// not a key=value token, skip to the next separator
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		for i < len(s) && isSpace(s[i]) {
			i++
		}
	}

	return fields
}

func isKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
