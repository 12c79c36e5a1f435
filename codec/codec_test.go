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
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/proto"
)

func TestMarshalRoundTrip(t *testing.T) {
	Convey("mappings survive a marshal/unmarshal round trip", t, func() {
		in := map[string]interface{}{
			"db-name": "movies",
			"t":       int64(42),
			"flags":   []interface{}{"a", "b"},
			"nested":  map[string]interface{}{"x": true},
		}
		p, err := Marshal(in)
		So(err, ShouldBeNil)
		So(p.Length, ShouldBeGreaterThan, 0)
		So(len(p.Bytes), ShouldBeGreaterThanOrEqualTo, p.Length)

		out, err := Unmarshal(bytes.NewReader(p.Bytes[:p.Length]), Msgpack)
		So(err, ShouldBeNil)
		So(out, ShouldResemble, in)
	})

	Convey("fact tuples survive the binary round trip", t, func() {
		d := proto.Datom{E: int64(42), A: ":person/name", V: "alice", Tx: 1001, Added: true}
		p, err := Marshal(map[string]interface{}{"data": []interface{}{d}})
		So(err, ShouldBeNil)

		out, err := Unmarshal(bytes.NewReader(p.Bytes[:p.Length]), Msgpack)
		So(err, ShouldBeNil)
		m := out.(map[string]interface{})
		data := m["data"].([]interface{})
		So(data, ShouldHaveLength, 1)
		got, ok := data[0].(proto.Datom)
		So(ok, ShouldBeTrue)
		So(got.Equal(d), ShouldBeTrue)
	})
}

func TestDecodeBody(t *testing.T) {
	Convey("binary content type decodes with the msgpack handle", t, func() {
		p, err := Marshal(map[string]interface{}{"result": "ok"})
		So(err, ShouldBeNil)
		v, anom := DecodeBody(ContentTypeMsgpack, p.Bytes[:p.Length])
		So(anom, ShouldBeNil)
		So(v, ShouldResemble, map[string]interface{}{"result": "ok"})
	})

	Convey("json content type decodes with the text handle", t, func() {
		v, anom := DecodeBody(ContentTypeJSON, []byte(`{"result": 7}`))
		So(anom, ShouldBeNil)
		m := v.(map[string]interface{})
		n, ok := proto.AsInt64(m["result"])
		So(ok, ShouldBeTrue)
		So(n, ShouldEqual, 7)
	})

	Convey("edn content type decodes symbolically", t, func() {
		v, anom := DecodeBody(ContentTypeEDN, []byte(`{:result [1 2 3]}`))
		So(anom, ShouldBeNil)
		So(v, ShouldResemble, map[string]interface{}{
			"result": []interface{}{int64(1), int64(2), int64(3)},
		})
	})

	Convey("plain text passes through as a string", t, func() {
		v, anom := DecodeBody(ContentTypePlain, []byte("hello"))
		So(anom, ShouldBeNil)
		So(v, ShouldEqual, "hello")
	})

	Convey("charset parameters are ignored", t, func() {
		v, anom := DecodeBody("text/plain; charset=utf-8", []byte("hi"))
		So(anom, ShouldBeNil)
		So(v, ShouldEqual, "hi")
	})

	Convey("unknown content types fault", t, func() {
		_, anom := DecodeBody("application/xml", []byte("<x/>"))
		So(anom, ShouldNotBeNil)
		So(anom.Category, ShouldEqual, anomaly.Fault)
		So(anom.Message, ShouldEqual, "Cannot unmarshal content-type application/xml")
	})

	Convey("decode failures fault", t, func() {
		_, anom := DecodeBody(ContentTypeJSON, []byte("{truncated"))
		So(anom, ShouldNotBeNil)
		So(anom.Category, ShouldEqual, anomaly.Fault)
	})
}

func TestDecodeEDN(t *testing.T) {
	Convey("atoms", t, func() {
		v, err := DecodeEDN("nil")
		So(err, ShouldBeNil)
		So(v, ShouldBeNil)

		v, err = DecodeEDN("true")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, true)

		v, err = DecodeEDN("-17")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, int64(-17))

		v, err = DecodeEDN("2.5")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 2.5)

		v, err = DecodeEDN(`"a \"quoted\" string"`)
		So(err, ShouldBeNil)
		So(v, ShouldEqual, `a "quoted" string`)

		v, err = DecodeEDN(":person/name")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, ":person/name")
	})

	Convey("collections nest, commas are whitespace", t, func() {
		v, err := DecodeEDN(`{:dbs [{:t 7, :next-t 8}]}`)
		So(err, ShouldBeNil)
		So(v, ShouldResemble, map[string]interface{}{
			"dbs": []interface{}{
				map[string]interface{}{"t": int64(7), "next-t": int64(8)},
			},
		})
	})

	Convey("datom tagged literals become fact tuples", t, func() {
		v, err := DecodeEDN(`#datom[42 :person/name "alice" 1001 true]`)
		So(err, ShouldBeNil)
		d, ok := v.(proto.Datom)
		So(ok, ShouldBeTrue)
		So(d.Equal(proto.Datom{E: int64(42), A: ":person/name", V: "alice", Tx: 1001, Added: true}), ShouldBeTrue)
	})

	Convey("malformed input fails", t, func() {
		_, err := DecodeEDN("[1 2")
		So(err, ShouldNotBeNil)
		_, err = DecodeEDN("}")
		So(err, ShouldNotBeNil)
		_, err = DecodeEDN("1 2")
		So(err, ShouldNotBeNil)
	})
}
