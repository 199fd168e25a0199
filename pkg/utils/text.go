// Package utils provides shared helpers for text, vector math, and logging.
package utils

// Truncate returns s cut to at most maxRunes characters, with "..." appended if cut.
// Multi-byte characters are never split. A maxRunes of 0 or less returns s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
