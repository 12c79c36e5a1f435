/*
 * Copyright 2019 The NanoDB Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package codec

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/nanodb/nanodb-go/proto"
)

// DecodeEDN reads one textual symbolic expression. Keywords and symbols
// decode as strings (keywords keep their leading colon, except as map
// keys, where it is dropped), collections as slices and string-keyed
// maps, and #datom tagged literals as fact tuples.
func DecodeEDN(s string) (v interface{}, err error) {
	r := &ednReader{src: s}
	v, err = r.read()
	if err != nil {
		return nil, err
	}
	r.skipSpace()
	if r.pos < len(r.src) {
		return nil, errors.Errorf("trailing data at offset %d", r.pos)
	}
	return v, nil
}

type ednReader struct {
	src string
	pos int
}

func (r *ednReader) skipSpace() {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		if c == ';' {
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
			continue
		}
		if c == ',' || unicode.IsSpace(rune(c)) {
			r.pos++
			continue
		}
		break
	}
}

func (r *ednReader) read() (interface{}, error) {
	r.skipSpace()
	if r.pos >= len(r.src) {
		return nil, errors.New("unexpected end of input")
	}
	switch c := r.src[r.pos]; {
	case c == '(' || c == '[':
		return r.readSeq(closer(c))
	case c == '{':
		return r.readMap()
	case c == '"':
		return r.readString()
	case c == '#':
		return r.readDispatch()
	case c == ')' || c == ']' || c == '}':
		return nil, errors.Errorf("unexpected %q at offset %d", c, r.pos)
	default:
		return r.readAtom()
	}
}

func closer(open byte) byte {
	if open == '(' {
		return ')'
	}
	return ']'
}

func (r *ednReader) readSeq(close byte) (interface{}, error) {
	r.pos++ // opening delimiter
	var items []interface{}
	for {
		r.skipSpace()
		if r.pos >= len(r.src) {
			return nil, errors.Errorf("unterminated sequence, expected %q", close)
		}
		if r.src[r.pos] == close {
			r.pos++
			return items, nil
		}
		item, err := r.read()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (r *ednReader) readMap() (interface{}, error) {
	r.pos++ // '{'
	m := make(map[string]interface{})
	for {
		r.skipSpace()
		if r.pos >= len(r.src) {
			return nil, errors.New("unterminated map")
		}
		if r.src[r.pos] == '}' {
			r.pos++
			return m, nil
		}
		k, err := r.read()
		if err != nil {
			return nil, err
		}
		v, err := r.read()
		if err != nil {
			return nil, err
		}
		ks, ok := k.(string)
		if !ok {
			return nil, errors.Errorf("unsupported map key %v", k)
		}
		// keyword keys drop the colon so lookups match the binary decode
		m[strings.TrimPrefix(ks, ":")] = v
	}
}

func (r *ednReader) readString() (interface{}, error) {
	r.pos++ // opening quote
	var b strings.Builder
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch c {
		case '"':
			r.pos++
			return b.String(), nil
		case '\\':
			r.pos++
			if r.pos >= len(r.src) {
				return nil, errors.New("unterminated escape")
			}
			switch e := r.src[r.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\':
				b.WriteByte(e)
			default:
				return nil, errors.Errorf("unknown escape \\%c", e)
			}
			r.pos++
		default:
			b.WriteByte(c)
			r.pos++
		}
	}
	return nil, errors.New("unterminated string")
}

func (r *ednReader) readDispatch() (interface{}, error) {
	r.pos++ // '#'
	if r.pos < len(r.src) && r.src[r.pos] == '{' {
		return r.readSeq('}') // set reads as a sequence
	}
	tag, err := r.readToken()
	if err != nil {
		return nil, err
	}
	v, err := r.read()
	if err != nil {
		return nil, err
	}
	if tag == "datom" {
		fields, ok := v.([]interface{})
		if !ok || len(fields) != 5 {
			return nil, errors.New("datom literal needs a 5-element sequence")
		}
		var d proto.Datom
		fillDatom(&d, fields)
		return d, nil
	}
	// unknown tags pass their value through
	return v, nil
}

func (r *ednReader) readToken() (string, error) {
	start := r.pos
	for r.pos < len(r.src) && !isDelimiter(r.src[r.pos]) {
		r.pos++
	}
	if r.pos == start {
		return "", errors.Errorf("expected token at offset %d", start)
	}
	return r.src[start:r.pos], nil
}

func (r *ednReader) readAtom() (interface{}, error) {
	tok, err := r.readToken()
	if err != nil {
		return nil, err
	}
	switch tok {
	case "nil":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if c := tok[0]; c == '-' || c == '+' || (c >= '0' && c <= '9') {
		if n, err := strconv.ParseInt(strings.TrimSuffix(tok, "N"), 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSuffix(tok, "M"), 64); err == nil {
			return f, nil
		}
		return nil, errors.Errorf("malformed number %q", tok)
	}
	// keywords and symbols decode as their string form
	return tok, nil
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}', '"', ';', ',', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
