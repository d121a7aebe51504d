/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package protocol parses the flat key/value messages clients send and builds
// the JSON responses sent back.
//
// A message is a single object whose members are all scalars:
//
//	{"cmd":"login","username":"admin","password":"7861","request_id":42}
//
// Keys are quoted. Values are quoted strings (with the usual JSON escapes) or
// bare scalars running up to the next ',' or '}'. Nested objects and arrays
// are rejected. null and empty values count as absent, and the first
// occurrence of a repeated key wins.
package protocol

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

// Well known message keys.
const (
	KeyCmd       = "cmd"
	KeyRequestID = "request_id"
	KeyUsername  = "username"
	KeyPassword  = "password"
	KeySessionID = "session_id"
	KeyPath      = "path"
)

// Fields is a parsed message.
type Fields map[string]string

// Get returns the value of key, or def when the key is absent.
func (f Fields) Get(key, def string) string {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

type scanner struct {
	s   string
	pos int
}

func (sc *scanner) fail(format string, args ...interface{}) error {
	return errors.Wrapf(errdefs.ErrProtocol, "offset %d: "+format, append([]interface{}{sc.pos}, args...)...)
}

func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.s) {
		switch sc.s[sc.pos] {
		case ' ', '\t', '\n', '\r':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *scanner) peek() (byte, bool) {
	if sc.pos >= len(sc.s) {
		return 0, false
	}
	return sc.s[sc.pos], true
}

func (sc *scanner) expect(c byte) error {
	sc.skipSpace()
	got, ok := sc.peek()
	if !ok {
		return sc.fail("expected %q, got end of message", c)
	}
	if got != c {
		return sc.fail("expected %q, got %q", c, got)
	}
	sc.pos++
	return nil
}

// quoted reads a string starting at the opening quote.
func (sc *scanner) quoted() (string, error) {
	sc.pos++
	var b strings.Builder
	for sc.pos < len(sc.s) {
		c := sc.s[sc.pos]
		switch {
		case c == '"':
			sc.pos++
			return b.String(), nil
		case c == '\\':
			if err := sc.escape(&b); err != nil {
				return "", err
			}
		case c < 0x20:
			return "", sc.fail("control character in string")
		default:
			b.WriteByte(c)
			sc.pos++
		}
	}
	return "", sc.fail("unterminated string")
}

func (sc *scanner) escape(b *strings.Builder) error {
	if sc.pos+1 >= len(sc.s) {
		return sc.fail("unterminated escape")
	}
	c := sc.s[sc.pos+1]
	sc.pos += 2
	switch c {
	case '"', '\\', '/':
		b.WriteByte(c)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'u':
		r, err := sc.hex4()
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(r) && strings.HasPrefix(sc.s[sc.pos:], `\u`) {
			sc.pos += 2
			r2, err := sc.hex4()
			if err != nil {
				return err
			}
			r = utf16.DecodeRune(r, r2)
		}
		if r == 0 {
			return sc.fail("NUL escape in string")
		}
		if !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		b.WriteRune(r)
	default:
		return sc.fail("invalid escape \\%c", c)
	}
	return nil
}

func (sc *scanner) hex4() (rune, error) {
	if sc.pos+4 > len(sc.s) {
		return 0, sc.fail("short \\u escape")
	}
	v, err := strconv.ParseUint(sc.s[sc.pos:sc.pos+4], 16, 32)
	if err != nil {
		return 0, sc.fail("bad \\u escape %q", sc.s[sc.pos:sc.pos+4])
	}
	sc.pos += 4
	return rune(v), nil
}

// bare reads an unquoted scalar up to the next ',' or '}'.
func (sc *scanner) bare() (string, error) {
	start := sc.pos
	for sc.pos < len(sc.s) && sc.s[sc.pos] != ',' && sc.s[sc.pos] != '}' {
		switch sc.s[sc.pos] {
		case '{', '[', '"':
			return "", sc.fail("unexpected %q in bare value", sc.s[sc.pos])
		}
		sc.pos++
	}
	v := strings.TrimSpace(sc.s[start:sc.pos])
	if v == "" {
		return "", sc.fail("missing value")
	}
	return v, nil
}

func (sc *scanner) value() (string, bool, error) {
	sc.skipSpace()
	c, ok := sc.peek()
	if !ok {
		return "", false, sc.fail("expected value, got end of message")
	}
	switch c {
	case '"':
		v, err := sc.quoted()
		return v, v != "", err
	case '{', '[':
		return "", false, sc.fail("nested values are not accepted")
	}
	v, err := sc.bare()
	if err != nil {
		return "", false, err
	}
	return v, v != "null", nil
}

// Parse reads one message. On error it also returns the members read before
// the error so callers can still echo a request id.
func Parse(msg string) (Fields, error) {
	fields := make(Fields)
	sc := &scanner{s: msg}
	if err := sc.expect('{'); err != nil {
		return fields, err
	}
	sc.skipSpace()
	if c, ok := sc.peek(); ok && c == '}' {
		sc.pos++
		return fields, sc.end()
	}
	for {
		sc.skipSpace()
		if c, ok := sc.peek(); !ok || c != '"' {
			return fields, sc.fail("expected quoted key")
		}
		key, err := sc.quoted()
		if err != nil {
			return fields, err
		}
		if err := sc.expect(':'); err != nil {
			return fields, err
		}
		val, present, err := sc.value()
		if err != nil {
			return fields, err
		}
		if _, dup := fields[key]; present && !dup {
			fields[key] = val
		}
		sc.skipSpace()
		c, ok := sc.peek()
		if !ok {
			return fields, sc.fail("unterminated object")
		}
		sc.pos++
		switch c {
		case ',':
			continue
		case '}':
			return fields, sc.end()
		default:
			sc.pos--
			return fields, sc.fail("expected ',' or '}', got %q", c)
		}
	}
}

func (sc *scanner) end() error {
	sc.skipSpace()
	if sc.pos != len(sc.s) {
		return sc.fail("trailing data after object")
	}
	return nil
}
