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

package client

import (
	"net/http"
	"sync"
	"testing"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/proto"
)

func TestConnect(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("connect resolves the database and fetches the watermark", t, func() {
		fs := connServer("DB-connect", 7, 8)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("connect-db"))
			So(res.Anomaly, ShouldBeNil)
			So(res.Conn, ShouldNotBeNil)
			defer Shutdown(res.Conn)

			So(res.Conn.DatabaseID(), ShouldEqual, "DB-connect")
			So(res.Conn.DBName(), ShouldEqual, "connect-db")
			So(res.Conn.State().Load(), ShouldResemble, proto.Basis{T: 7, NextT: 8})
			So(fs.opCount("datomic.catalog/resolve-db"), ShouldEqual, 1)
			So(fs.opCount("datomic.client.protocol/status"), ShouldEqual, 1)

			db := DB(res.Conn)
			So(db, ShouldResemble, proto.DB{DatabaseID: "DB-connect", T: 7, NextT: 8})
		})
	})

	Convey("a second connect with the same config hits the cache", t, func() {
		fs := connServer("DB-cached", 1, 2)
		withFakeTransport(fs, func() {
			first := <-Connect(uniqueConfig("cached-db"))
			So(first.Anomaly, ShouldBeNil)
			defer Shutdown(first.Conn)

			second := <-Connect(uniqueConfig("cached-db"))
			So(second.Anomaly, ShouldBeNil)
			So(second.Conn, ShouldEqual, first.Conn)
			So(fs.opCount("datomic.catalog/resolve-db"), ShouldEqual, 1)
		})
	})

	Convey("concurrent connects share one build", t, func() {
		fs := connServer("DB-race", 1, 2)
		withFakeTransport(fs, func() {
			const n = 16
			results := make([]ConnectResult, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = <-Connect(uniqueConfig("race-db"))
				}(i)
			}
			wg.Wait()

			So(results[0].Anomaly, ShouldBeNil)
			defer Shutdown(results[0].Conn)
			for _, r := range results {
				So(r.Anomaly, ShouldBeNil)
				So(r.Conn, ShouldEqual, results[0].Conn)
			}
			So(fs.opCount("datomic.catalog/resolve-db"), ShouldEqual, 1)
			So(cache.byID("DB-race"), ShouldEqual, results[0].Conn)
		})
	})

	Convey("an invalid config short-circuits", t, func() {
		withHome(t, "", func() {
			defer clearEnv()()
			res := <-Connect(&Config{AccountID: "only"})
			So(res.Anomaly, ShouldNotBeNil)
			So(res.Anomaly.Category, ShouldEqual, anomaly.Incorrect)
		})
	})

	Convey("a resolve failure propagates", t, func() {
		fs := &fakeServer{}
		fs.handler = func(op string, body interface{}) *http.Response {
			return msgpackResponse(403, map[string]interface{}{"detail": "denied"})
		}
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("denied-db"))
			So(res.Anomaly, ShouldNotBeNil)
			So(res.Anomaly.Category, ShouldEqual, anomaly.Forbidden)
		})
	})
}

func TestShutdown(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("shutdown forgets the cache but keeps local state working", t, func() {
		fs := connServer("DB-shutdown", 5, 6)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("shutdown-db"))
			So(res.Anomaly, ShouldBeNil)
			conn := res.Conn

			Shutdown(conn)

			// descriptors remain usable, no network involved
			db := DB(conn)
			So(db.T, ShouldEqual, 5)

			// but network ops can no longer route by database-id
			resp := <-Datoms(db, DatomsParams{Index: IndexEAVT})
			So(resp.Anomaly, ShouldNotBeNil)
			So(resp.Anomaly.Category, ShouldEqual, anomaly.NotFound)

			So(Log(conn), ShouldResemble, map[string]interface{}{"log": "DB-shutdown"})
		})
	})
}

func TestDatoms(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("components bind by index order and the request routes by target", t, func() {
		fs := connServer("DB-datoms", 7, 8)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("datoms-db"))
			So(res.Anomaly, ShouldBeNil)
			defer Shutdown(res.Conn)

			db := DB(res.Conn)
			out := Datoms(db, DatomsParams{
				Index:      IndexEAVT,
				Components: []interface{}{int64(42), ":person/name"},
			})
			for range out {
			}

			sent := fs.lastBody("datomic.client.protocol/datoms").(map[string]interface{})
			So(sent["index"], ShouldEqual, "eavt")
			e, _ := proto.AsInt64(sent["e"])
			So(e, ShouldEqual, 42)
			So(sent["a"], ShouldEqual, ":person/name")
			_, hasV := sent["v"]
			So(hasV, ShouldBeFalse)
			So(sent["database-id"], ShouldEqual, "DB-datoms")
			limit, _ := proto.AsInt64(sent["limit"])
			So(limit, ShouldEqual, 1000)
			chunk, _ := proto.AsInt64(sent["chunk"])
			So(chunk, ShouldEqual, 1000)
		})
	})

	Convey("avet order binds the attribute first", t, func() {
		fs := connServer("DB-avet", 7, 8)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("avet-db"))
			So(res.Anomaly, ShouldBeNil)
			defer Shutdown(res.Conn)

			out := Datoms(DB(res.Conn), DatomsParams{
				Index:      IndexAVET,
				Components: []interface{}{":person/name", "alice"},
			})
			for range out {
			}

			sent := fs.lastBody("datomic.client.protocol/datoms").(map[string]interface{})
			So(sent["a"], ShouldEqual, ":person/name")
			So(sent["v"], ShouldEqual, "alice")
			_, hasE := sent["e"]
			So(hasE, ShouldBeFalse)
		})
	})

	Convey("too many components is an incorrect anomaly", t, func() {
		fs := connServer("DB-over", 7, 8)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("over-db"))
			So(res.Anomaly, ShouldBeNil)
			defer Shutdown(res.Conn)

			out := Datoms(DB(res.Conn), DatomsParams{
				Index:      IndexEAVT,
				Components: []interface{}{1, 2, 3, 4},
			})
			resp := <-out
			So(resp.Anomaly, ShouldNotBeNil)
			So(resp.Anomaly.Category, ShouldEqual, anomaly.Incorrect)
		})
	})

	Convey("an unknown index is an incorrect anomaly", t, func() {
		fs := connServer("DB-badidx", 7, 8)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("badidx-db"))
			So(res.Anomaly, ShouldBeNil)
			defer Shutdown(res.Conn)

			resp := <-Datoms(DB(res.Conn), DatomsParams{Index: "teav"})
			So(resp.Anomaly.Category, ShouldEqual, anomaly.Incorrect)
		})
	})
}

func TestPullAndStats(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("pull extracts the result field, empty map when absent", t, func() {
		fs := &fakeServer{}
		fs.handler = func(op string, body interface{}) *http.Response {
			switch op {
			case "datomic.catalog/resolve-db":
				return msgpackResponse(200, map[string]interface{}{"database-id": "DB-pull"})
			case "datomic.client.protocol/status":
				return msgpackResponse(200, map[string]interface{}{"t": int64(1), "next-t": int64(2)})
			case "datomic.client.protocol/pull":
				return msgpackResponse(200, map[string]interface{}{})
			default:
				return msgpackResponse(200, map[string]interface{}{"result": map[string]interface{}{"datoms": int64(12)}})
			}
		}
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("pull-db"))
			So(res.Anomaly, ShouldBeNil)
			defer Shutdown(res.Conn)
			db := DB(res.Conn)

			pulled := <-Pull(db, PullParams{Selector: "[*]", EID: int64(42)})
			So(pulled.Anomaly, ShouldBeNil)
			So(pulled.Body, ShouldResemble, map[string]interface{}{})

			stats := <-DBStats(db)
			So(stats.Anomaly, ShouldBeNil)
			So(stats.Body, ShouldResemble, map[string]interface{}{"datoms": int64(12)})
		})
	})
}

func TestTransactAndWith(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("transact mints a fresh tx-id per call", t, func() {
		fs := connServer("DB-tx", 3, 4)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("tx-db"))
			So(res.Anomaly, ShouldBeNil)
			defer Shutdown(res.Conn)

			txData := []interface{}{
				map[string]interface{}{":person/name": "alice"},
			}
			<-Transact(res.Conn, TransactParams{TxData: txData})
			first := fs.lastBody("datomic.client.protocol/transact").(map[string]interface{})
			<-Transact(res.Conn, TransactParams{TxData: txData})
			second := fs.lastBody("datomic.client.protocol/transact").(map[string]interface{})

			So(first["tx-id"], ShouldNotBeEmpty)
			So(second["tx-id"], ShouldNotBeEmpty)
			So(first["tx-id"], ShouldNotEqual, second["tx-id"])
		})
	})

	Convey("with requires a descriptor from with-db", t, func() {
		fs := connServer("DB-with", 3, 4)
		withFakeTransport(fs, func() {
			res := <-Connect(uniqueConfig("with-db-test"))
			So(res.Anomaly, ShouldBeNil)
			defer Shutdown(res.Conn)

			resp := <-With(DB(res.Conn), WithParams{TxData: []interface{}{}})
			So(resp.Anomaly, ShouldNotBeNil)
			So(resp.Anomaly.Category, ShouldEqual, anomaly.Incorrect)

			db := DB(res.Conn)
			db.NextToken = "branch-1"
			ok := <-With(db, WithParams{TxData: []interface{}{}})
			So(ok.Anomaly, ShouldBeNil)

			sent := fs.lastBody("datomic.client.protocol/with").(map[string]interface{})
			So(sent["next-token"], ShouldEqual, "branch-1")
			So(sent["tx-id"], ShouldNotBeEmpty)
		})
	})
}
