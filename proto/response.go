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

package proto

import (
	"github.com/nanodb/nanodb-go/anomaly"
)

// Response is the classified outcome of one request attempt: either a
// decoded body or an anomaly, never both.
type Response struct {
	Body    interface{}
	Anomaly *anomaly.Anomaly
}

// Err returns the anomaly, nil on success.
func (r Response) Err() *anomaly.Anomaly {
	return r.Anomaly
}

// BodyMap returns the body as a mapping, nil when the body is absent or
// not a mapping.
func (r Response) BodyMap() map[string]interface{} {
	m, _ := r.Body.(map[string]interface{})
	return m
}

// Field returns a named field of the body mapping.
func (r Response) Field(key string) (v interface{}, ok bool) {
	m := r.BodyMap()
	if m == nil {
		return nil, false
	}
	v, ok = m[key]
	return
}

// AsInt64 coerces the numeric representations produced by the decoders
// onto int64.
func AsInt64(v interface{}) (n int64, ok bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case uint32:
		return int64(t), true
	case float64:
		return int64(t), true
	}
	return 0, false
}

// AsString coerces v onto string.
func AsString(v interface{}) (s string, ok bool) {
	s, ok = v.(string)
	return
}

// BasisOf extracts the watermark carried by a successful body: the first
// element of the dbs array when it has both t and next-t.
func BasisOf(body interface{}) (b Basis, ok bool) {
	m, _ := body.(map[string]interface{})
	if m == nil {
		return
	}
	dbs, _ := m["dbs"].([]interface{})
	if len(dbs) == 0 {
		return
	}
	first, _ := dbs[0].(map[string]interface{})
	if first == nil {
		return
	}
	t, tok := AsInt64(first["t"])
	next, nok := AsInt64(first["next-t"])
	if !tok || !nok || t < 0 || next < 0 {
		return
	}
	return Basis{T: uint64(t), NextT: uint64(next)}, true
}

// NextOffsetOf extracts the continuation offset of a chunked response,
// absent on the final chunk.
func NextOffsetOf(body interface{}) (off int64, ok bool) {
	m, _ := body.(map[string]interface{})
	if m == nil {
		return
	}
	v, present := m["next-offset"]
	if !present {
		return
	}
	return AsInt64(v)
}

// NextTokenOf extracts the continuation token of a chunked response.
func NextTokenOf(body interface{}) (tok string, ok bool) {
	m, _ := body.(map[string]interface{})
	if m == nil {
		return
	}
	return AsString(m["next-token"])
}

// ChunkOf extracts the chunk size echoed by a chunked response.
func ChunkOf(body interface{}) (n int64, ok bool) {
	m, _ := body.(map[string]interface{})
	if m == nil {
		return
	}
	return AsInt64(m["chunk"])
}

// DBOf builds a database descriptor from a body carrying database-id and
// watermark fields, as returned by with-db.
func DBOf(body interface{}) (db DB, ok bool) {
	m, _ := body.(map[string]interface{})
	if m == nil {
		return
	}
	id, idok := AsString(m["database-id"])
	t, tok := AsInt64(m["t"])
	next, nok := AsInt64(m["next-t"])
	if !idok || !tok || !nok {
		return
	}
	db = DB{DatabaseID: id, T: uint64(t), NextT: uint64(next)}
	if token, present := AsString(m["next-token"]); present {
		db.NextToken = token
	}
	return db, true
}
