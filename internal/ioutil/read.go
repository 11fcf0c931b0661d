// Package ioutil bounds how much of an upstream response is read and
// logged.
package ioutil

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrBodyTooLarge is returned when a body exceeds the read limit
var ErrBodyTooLarge = errors.New("response body too large")

// ReadLimited reads all of r as long as it fits in limit bytes. A longer
// body is an error rather than a silent truncation, which would surface
// later as a confusing JSON syntax error.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

// Snippet returns at most max bytes of body for error messages and logs,
// cut on a rune boundary.
func Snippet(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	cut := body[:max]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "..."
}
