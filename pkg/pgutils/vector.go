// Package pgutils provides PostgreSQL helpers shared by the repositories.
package pgutils

import (
	"strconv"
	"strings"
)

// FormatVector converts a float32 slice to PostgreSQL vector literal format.
// Example: []float32{0.1, 0.2, 0.3} -> "[0.1,0.2,0.3]"
func FormatVector(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}

	var buf strings.Builder
	buf.Grow(len(v)*12 + 2)
	buf.WriteByte('[')

	for i, f := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}

	buf.WriteByte(']')
	return buf.String()
}

// FormatTextArray converts a string slice to PostgreSQL text[] literal format,
// quoting and escaping elements that contain special characters.
func FormatTextArray(arr []string) string {
	if len(arr) == 0 {
		return "{}"
	}

	var buf strings.Builder
	buf.WriteByte('{')

	for i, s := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		needsQuote := s == "" || strings.ContainsAny(s, `{},"\ `)
		if needsQuote {
			buf.WriteByte('"')
			for _, c := range s {
				if c == '\\' || c == '"' {
					buf.WriteByte('\\')
				}
				buf.WriteRune(c)
			}
			buf.WriteByte('"')
		} else {
			buf.WriteString(s)
		}
	}

	buf.WriteByte('}')
	return buf.String()
}
