// Package goid reports the identity of the calling goroutine.
//
// The id is used as the "exclusive owner" handle of a synchronizer and as the
// identity reported by queue inspection. It is parsed from the first line of
// runtime.Stack output ("goroutine 123 [running]:"), which works on every Go
// version and architecture.
package goid

import "runtime"

// None is the id reported when no goroutine owns a synchronizer.
const None int64 = 0

// Current returns the id of the calling goroutine, or None if it cannot be
// determined.
func Current() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse extracts the goroutine id from stack trace bytes.
func parse(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return None
	}

	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
