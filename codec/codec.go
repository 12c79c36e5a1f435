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

// Package codec marshals request payloads and unmarshals response bodies
// over the wire formats the service speaks. Fact tuples travel as tagged
// 5-element sequences and are rebuilt as proto.Datom on decode.
package codec

import (
	"bytes"
	"io"
	"io/ioutil"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/proto"
)

// Format selects a decode handle.
type Format int

// Supported body formats.
const (
	Msgpack Format = iota
	JSON
)

// Content types dispatched by DecodeBody.
const (
	ContentTypeMsgpack = "application/transit+msgpack"
	ContentTypeJSON    = "application/transit+json"
	ContentTypeEDN     = "application/edn"
	ContentTypePlain   = "text/plain"
)

// datomExtID is the extension tag carrying fact tuples.
const datomExtID = 0x64

var (
	msgpackHandle *codec.MsgpackHandle
	jsonHandle    *codec.JsonHandle
)

func init() {
	mapType := reflect.TypeOf(map[string]interface{}(nil))

	msgpackHandle = &codec.MsgpackHandle{
		WriteExt: true,
	}
	msgpackHandle.RawToString = true
	msgpackHandle.MapType = mapType
	msgpackHandle.SignedInteger = true
	if err := msgpackHandle.SetBytesExt(
		reflect.TypeOf(proto.Datom{}), datomExtID, datomBytesExt{}); err != nil {
		panic(err)
	}

	jsonHandle = &codec.JsonHandle{}
	jsonHandle.MapType = mapType
	if err := jsonHandle.SetInterfaceExt(
		reflect.TypeOf(proto.Datom{}), datomExtID, datomInterfaceExt{}); err != nil {
		panic(err)
	}
}

// Payload is a marshalled request body. Bytes may be longer than Length
// when the encoder reuses its arena; only the first Length bytes are the
// payload.
type Payload struct {
	Bytes  []byte
	Length int
}

// Marshal encodes v with the binary handle.
func Marshal(v interface{}) (p Payload, err error) {
	buf := bytes.NewBuffer(nil)
	enc := codec.NewEncoder(buf, msgpackHandle)
	if err = enc.Encode(v); err != nil {
		err = errors.Wrap(err, "marshal request")
		return
	}
	p = Payload{Bytes: buf.Bytes(), Length: buf.Len()}
	return
}

// Unmarshal decodes one value of the given format from r. Generic
// mappings decode as map[string]interface{}; tagged fact tuples decode
// as proto.Datom.
func Unmarshal(r io.Reader, f Format) (v interface{}, err error) {
	var h codec.Handle
	switch f {
	case Msgpack:
		h = msgpackHandle
	case JSON:
		h = jsonHandle
	default:
		return nil, errors.Errorf("unknown format %d", f)
	}
	dec := codec.NewDecoder(r, h)
	if err = dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "unmarshal response")
	}
	return
}

// DecodeBody dispatches on the response content type. Unknown content
// types and decode failures yield fault anomalies.
func DecodeBody(contentType string, body []byte) (v interface{}, anom *anomaly.Anomaly) {
	// strip any ;charset= suffix
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	var err error
	switch contentType {
	case ContentTypeMsgpack:
		v, err = Unmarshal(bytes.NewReader(body), Msgpack)
	case ContentTypeJSON:
		v, err = Unmarshal(bytes.NewReader(body), JSON)
	case ContentTypeEDN:
		v, err = DecodeEDN(string(body))
	case ContentTypePlain:
		return string(body), nil
	default:
		return nil, anomaly.Newf(anomaly.Fault, "Cannot unmarshal content-type %s", contentType)
	}
	if err != nil {
		return nil, anomaly.FromError(anomaly.Fault, err)
	}
	return v, nil
}

// ReadAll drains r, for response bodies of unknown size.
func ReadAll(r io.Reader) ([]byte, error) {
	return ioutil.ReadAll(r)
}

// datomBytesExt encodes fact tuples as a nested msgpack 5-element array
// inside an extension frame.
type datomBytesExt struct{}

func (datomBytesExt) WriteExt(v interface{}) []byte {
	buf := bytes.NewBuffer(nil)
	enc := codec.NewEncoder(buf, msgpackHandle)
	if err := enc.Encode(datomFields(asDatom(v))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (datomBytesExt) ReadExt(dst interface{}, src []byte) {
	d := dst.(*proto.Datom)
	var fields []interface{}
	dec := codec.NewDecoder(bytes.NewReader(src), msgpackHandle)
	if err := dec.Decode(&fields); err != nil {
		panic(err)
	}
	fillDatom(d, fields)
}

// datomInterfaceExt is the textual-handle counterpart, exchanging fact
// tuples as plain 5-element sequences.
type datomInterfaceExt struct{}

func (datomInterfaceExt) ConvertExt(v interface{}) interface{} {
	return datomFields(asDatom(v))
}

func (datomInterfaceExt) UpdateExt(dst interface{}, src interface{}) {
	fields, _ := src.([]interface{})
	fillDatom(dst.(*proto.Datom), fields)
}

// asDatom accepts the value or its address, per the ext contract.
func asDatom(v interface{}) proto.Datom {
	switch t := v.(type) {
	case proto.Datom:
		return t
	case *proto.Datom:
		return *t
	}
	panic(errors.Errorf("unexpected ext value %T", v))
}

func datomFields(d proto.Datom) []interface{} {
	return []interface{}{d.E, d.A, d.V, d.Tx, d.Added}
}

func fillDatom(d *proto.Datom, fields []interface{}) {
	if len(fields) != 5 {
		panic(errors.Errorf("datom needs 5 fields, got %d", len(fields)))
	}
	d.E = fields[0]
	d.A = fields[1]
	d.V = fields[2]
	if tx, ok := proto.AsInt64(fields[3]); ok {
		d.Tx = tx
	}
	if added, ok := fields[4].(bool); ok {
		d.Added = added
	}
}
