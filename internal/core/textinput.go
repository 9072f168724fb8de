package core

// textinput.go reads model output or pasted text that is about to be
// normalized.
//
// Text arrives from HTTP bodies, files and stdin, so it is cleaned before
// it reaches the normalizer:
//
//   - a leading UTF-8 BOM (0xEF 0xBB 0xBF) is dropped
//   - invalid UTF-8 bytes are replaced with '?'
//   - input beyond the size limit fails with ErrPayloadTooLarge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxPayloadBytes bounds text accepted for normalization.
const DefaultMaxPayloadBytes = 5 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadPayloadText reads at most maxBytes from r and returns it as clean
// UTF-8. A maxBytes of zero or less uses DefaultMaxPayloadBytes.
func ReadPayloadText(r io.Reader, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	data, err := io.ReadAll(io.LimitReader(br, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, maxBytes)
	}
	return sanitizeUTF8(data), nil
}

// sanitizeUTF8 replaces each invalid byte with '?'.
func sanitizeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
		} else {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	return string(out)
}
