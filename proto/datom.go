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

// Package proto defines the value types exchanged with the service: fact
// tuples, database descriptors, watermark state and per-operation request
// shapes.
package proto

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
)

// ErrFieldIndex indicates positional access outside 0..4 on a fact tuple.
var ErrFieldIndex = errors.New("datom field index out of range")

// Datom is a single fact: entity, attribute, value, transaction and the
// added flag distinguishing assertion from retraction.
type Datom struct {
	E     interface{} `codec:"e"`
	A     interface{} `codec:"a"`
	V     interface{} `codec:"v"`
	Tx    int64       `codec:"tx"`
	Added bool        `codec:"added"`
}

// At returns the field at position i, ordered e, a, v, tx, added.
func (d Datom) At(i int) (interface{}, error) {
	switch i {
	case 0:
		return d.E, nil
	case 1:
		return d.A, nil
	case 2:
		return d.V, nil
	case 3:
		return d.Tx, nil
	case 4:
		return d.Added, nil
	}
	return nil, errors.Wrapf(ErrFieldIndex, "index %d", i)
}

// Get returns the named field, one of e, a, v, tx, added.
func (d Datom) Get(field string) (v interface{}, ok bool) {
	switch field {
	case "e":
		return d.E, true
	case "a":
		return d.A, true
	case "v":
		return d.V, true
	case "tx", "t":
		return d.Tx, true
	case "added":
		return d.Added, true
	}
	return nil, false
}

// Equal compares field-wise. Values are compared by total order so equal
// numerics in different representations compare equal. The transaction
// field participates: identical facts from different transactions differ.
func (d Datom) Equal(o Datom) bool {
	return valueEqual(d.E, o.E) &&
		valueEqual(d.A, o.A) &&
		valueEqual(d.V, o.V) &&
		d.Tx == o.Tx &&
		d.Added == o.Added
}

// Hash ignores the transaction field so the same fact hashes alike across
// time, while Equal still separates occurrences.
func (d Datom) Hash() uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%v\x00%v\x00%v\x00%v", normalize(d.E), normalize(d.A), normalize(d.V), d.Added)
	return h.Sum64()
}

// String renders the tuple in its tagged print form.
func (d Datom) String() string {
	return fmt.Sprintf("#datom[%v %v %v %d %v]", d.E, d.A, d.V, d.Tx, d.Added)
}

// normalize maps any numeric representation onto a single comparable
// form. Integers that fit int64 stay integral; everything else widens to
// float64.
func normalize(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n <= 1<<63-1 {
			return int64(n)
		}
		return float64(n)
	case float32:
		f := float64(n)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case float64:
		if n == float64(int64(n)) && n >= -(1<<62) && n <= 1<<62 {
			return int64(n)
		}
		return n
	}
	return v
}

func valueEqual(a, b interface{}) bool {
	na, nb := normalize(a), normalize(b)
	if na == nil || nb == nil {
		return na == nb
	}
	if !reflect.TypeOf(na).Comparable() || !reflect.TypeOf(nb).Comparable() {
		return reflect.DeepEqual(na, nb)
	}
	return na == nb
}
