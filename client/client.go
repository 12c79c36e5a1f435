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

// Package client is the facade over the request pipeline: opening
// connections, deriving database descriptors, reading indexes, running
// queries and submitting transactions. Network operations return result
// channels; local operations return values.
package client

import (
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/crypto/hmacsign"
	"github.com/nanodb/nanodb-go/proto"
	"github.com/nanodb/nanodb-go/transport"
)

// newTransport builds the transport for new connection impls; swapped
// under test.
var newTransport = transport.Default

// ConnectResult delivers either a connection or an anomaly.
type ConnectResult struct {
	Conn    Connection
	Anomaly *anomaly.Anomaly
}

// inflight collapses concurrent connects on the same config so at most
// one connect runs per configuration; the rest wait and share its
// result.
var inflight = struct {
	sync.Mutex
	calls map[Config]*inflightCall
}{calls: make(map[Config]*inflightCall)}

type inflightCall struct {
	done chan struct{}
	res  ConnectResult
}

// Connect resolves and validates the configuration, then returns the
// interned connection for it, building one on first use.
func Connect(userArgs *Config) <-chan ConnectResult {
	out := make(chan ConnectResult, 1)
	go func() {
		out <- doConnect(userArgs)
	}()
	return out
}

func doConnect(userArgs *Config) ConnectResult {
	cfg, anom := ResolveConfig(userArgs)
	if anom != nil {
		return ConnectResult{Anomaly: anom}
	}
	if conn := cache.byConfig(cfg); conn != nil {
		return ConnectResult{Conn: conn}
	}

	inflight.Lock()
	if call, ok := inflight.calls[cfg]; ok {
		inflight.Unlock()
		<-call.done
		return call.res
	}
	call := &inflightCall{done: make(chan struct{})}
	inflight.calls[cfg] = call
	inflight.Unlock()

	defer func() {
		inflight.Lock()
		delete(inflight.calls, cfg)
		inflight.Unlock()
		close(call.done)
	}()

	// losers of an earlier race may have installed it meanwhile
	if conn := cache.byConfig(cfg); conn != nil {
		call.res = ConnectResult{Conn: conn}
		return call.res
	}
	call.res = buildConnection(cfg)
	return call.res
}

// buildConnection resolves the database-id, fetches the initial
// watermark and interns the new connection.
func buildConnection(cfg Config) ConnectResult {
	impl, anom := newImpl(cfg)
	if anom != nil {
		return ConnectResult{Anomaly: anom}
	}

	resolve := <-impl.QueueRequest(&proto.Request{
		Op:   proto.OpResolveDB,
		Body: proto.ResolveDBRequest{DBName: cfg.DBName},
	})
	if resolve.Anomaly != nil {
		return ConnectResult{Anomaly: resolve.Anomaly}
	}
	databaseID, ok := proto.AsString(resolve.BodyMap()["database-id"])
	if !ok || databaseID == "" {
		return ConnectResult{Anomaly: anomaly.New(anomaly.Fault, "resolve-db returned no database-id")}
	}

	impl.DatabaseID = databaseID
	impl.State = proto.NewState()

	status := <-impl.QueueRequest(&proto.Request{
		Op:   proto.OpStatus,
		Body: proto.StatusRequest{DatabaseID: databaseID},
	})
	if status.Anomaly != nil {
		return ConnectResult{Anomaly: status.Anomaly}
	}
	advanceFromBody(impl.State, status)

	conn := &connection{cfg: cfg, impl: impl}
	cache.put(cfg, databaseID, conn)
	log.WithFields(log.Fields{
		"db-name":     cfg.DBName,
		"database-id": databaseID,
	}).Debug("connected")
	return ConnectResult{Conn: conn}
}

// newImpl builds a connection impl from a validated config. The
// database-id and state stay unset until resolution.
func newImpl(cfg Config) (*transport.Impl, *anomaly.Anomaly) {
	ep, anom := ParseEndpoint(cfg.Endpoint)
	if anom != nil {
		return nil, anom
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &transport.Impl{
		Endpoint: ep,
		Creds: hmacsign.Credentials{
			AccessKey: cfg.AccessKey,
			Secret:    cfg.Secret,
			Service:   cfg.Service,
			Region:    cfg.Region,
		},
		Timeout:   timeout,
		Transport: newTransport(),
	}, nil
}

// advanceFromBody applies a top-level {t, next-t} pair, as returned by
// the status op. Watermarks inside a dbs array are already applied by
// the classifier.
func advanceFromBody(state *proto.State, resp proto.Response) {
	m := resp.BodyMap()
	if m == nil {
		return
	}
	t, tok := proto.AsInt64(m["t"])
	next, nok := proto.AsInt64(m["next-t"])
	if tok && nok && t >= 0 && next >= 0 {
		state.Advance(proto.Basis{T: uint64(t), NextT: uint64(next)})
	}
}

// DB returns the connection's current database descriptor. Local, no
// network call.
func DB(conn Connection) proto.DB {
	basis := conn.State().Load()
	return proto.DB{DatabaseID: conn.DatabaseID(), T: basis.T, NextT: basis.NextT}
}

// AsOf narrows db to facts at or before t.
func AsOf(db proto.DB, t uint64) proto.DB { return db.AsOfT(t) }

// Since narrows db to facts after t.
func Since(db proto.DB, t uint64) proto.DB { return db.SinceT(t) }

// History widens db to assertions and retractions across time.
func History(db proto.DB) proto.DB { return db.WithHistory() }

// Log returns the log descriptor for the connection. Local.
func Log(conn Connection) map[string]interface{} {
	return map[string]interface{}{"log": conn.DatabaseID()}
}

// Shutdown forgets the connection. In-memory descriptors keep working;
// network operations fail once the cache no longer maps the
// database-id. No network call is made.
func Shutdown(conn Connection) {
	cache.forgetConn(conn)
}

// Status re-issues the status operation, advancing the watermark on
// success.
func Status(conn Connection) <-chan proto.Response {
	out := make(chan proto.Response, 1)
	impl := conn.Impl()
	go func() {
		resp := <-impl.QueueRequest(&proto.Request{
			Op:   proto.OpStatus,
			Body: proto.StatusRequest{DatabaseID: impl.DatabaseID},
		})
		if resp.Anomaly == nil {
			advanceFromBody(impl.State, resp)
		}
		out <- resp
	}()
	return out
}

// DatomsParams select an index ordering and bind leading components.
type DatomsParams struct {
	Index      string
	Components []interface{}
	Offset     int64
	Limit      int64
	Chunk      int64
	Timeout    time.Duration
}

// Datoms streams datoms of an index in order.
func Datoms(db proto.DB, p DatomsParams) <-chan proto.Response {
	impl, anom := implForDB(db)
	if anom != nil {
		return anomalyStream(anom)
	}
	body := proto.DatomsRequest{
		DB:     db,
		Index:  p.Index,
		Offset: p.Offset,
		Limit:  defaultLimit(p.Limit),
		Chunk:  boundChunk(p.Chunk),
	}
	if anom := bindComponents(p.Index, p.Components, &body); anom != nil {
		return anomalyStream(anom)
	}
	return impl.QueueChunkedRequest(&proto.Request{
		Op:      proto.OpDatoms,
		Timeout: p.Timeout,
		Body:    body,
	}, "data", body.Chunk)
}

// IndexRangeParams select an attribute slice of the avet index.
type IndexRangeParams struct {
	Attrid  interface{}
	Start   interface{}
	End     interface{}
	Offset  int64
	Limit   int64
	Chunk   int64
	Timeout time.Duration
}

// IndexRange streams the avet index between two attribute values.
func IndexRange(db proto.DB, p IndexRangeParams) <-chan proto.Response {
	impl, anom := implForDB(db)
	if anom != nil {
		return anomalyStream(anom)
	}
	body := proto.IndexRangeRequest{
		DB:     db,
		Attrid: p.Attrid,
		Start:  p.Start,
		End:    p.End,
		Offset: p.Offset,
		Limit:  defaultLimit(p.Limit),
		Chunk:  boundChunk(p.Chunk),
	}
	return impl.QueueChunkedRequest(&proto.Request{
		Op:      proto.OpIndexRange,
		Timeout: p.Timeout,
		Body:    body,
	}, "data", body.Chunk)
}

// PullParams name a selector and an entity.
type PullParams struct {
	Selector interface{}
	EID      interface{}
	Timeout  time.Duration
}

// Pull fetches a hierarchical selection for one entity. The result is
// the response's result field, an empty map when absent.
func Pull(db proto.DB, p PullParams) <-chan proto.Response {
	impl, anom := implForDB(db)
	if anom != nil {
		return anomalyResult(anom)
	}
	out := make(chan proto.Response, 1)
	go func() {
		resp := <-impl.QueueRequest(&proto.Request{
			Op:      proto.OpPull,
			Timeout: p.Timeout,
			Body:    proto.PullRequest{DB: db, Selector: p.Selector, EID: p.EID},
		})
		out <- extractResult(resp, true)
	}()
	return out
}

// QParams carry a query and its inputs.
type QParams struct {
	Query   interface{}
	Args    []interface{}
	Offset  int64
	Limit   int64
	Chunk   int64
	Timeout time.Duration
}

// Q streams query results in chunks.
func Q(conn Connection, p QParams) <-chan proto.Response {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = proto.DefaultTimeout
	}
	body := proto.QRequest{
		Query:  p.Query,
		Args:   p.Args,
		Offset: p.Offset,
		Limit:  defaultLimit(p.Limit),
		Chunk:  boundChunk(p.Chunk),
	}
	return conn.Impl().QueueChunkedRequest(&proto.Request{
		Op:      proto.OpQ,
		Timeout: timeout,
		Body:    body,
	}, "data", body.Chunk)
}

// TxRangeParams bound a read of the transaction log.
type TxRangeParams struct {
	Start   interface{}
	End     interface{}
	Offset  int64
	Limit   int64
	Chunk   int64
	Timeout time.Duration
}

// TxRange streams transactions from the log.
func TxRange(conn Connection, p TxRangeParams) <-chan proto.Response {
	body := proto.TxRangeRequest{
		Start:  p.Start,
		End:    p.End,
		Offset: p.Offset,
		Limit:  defaultLimit(p.Limit),
		Chunk:  boundChunk(p.Chunk),
	}
	return conn.Impl().QueueChunkedRequest(&proto.Request{
		Op:      proto.OpTxRange,
		Timeout: p.Timeout,
		Body:    body,
	}, "data", body.Chunk)
}

// TransactParams carry transaction data.
type TransactParams struct {
	TxData  interface{}
	Timeout time.Duration
}

// Transact submits transaction data. Every call mints a fresh tx-id so
// the server can recognize resubmissions.
func Transact(conn Connection, p TransactParams) <-chan proto.Response {
	out := make(chan proto.Response, 1)
	impl := conn.Impl()
	go func() {
		resp := <-impl.QueueRequest(&proto.Request{
			Op:      proto.OpTransact,
			Timeout: p.Timeout,
			Body: proto.TransactRequest{
				TxData: p.TxData,
				TxID:   uuid.Must(uuid.NewV4()).String(),
			},
		})
		out <- resp
	}()
	return out
}

// WithDB obtains a branch point for speculative transactions. The
// result body carries database-id, t, next-t and next-token.
func WithDB(conn Connection) <-chan proto.Response {
	out := make(chan proto.Response, 1)
	impl := conn.Impl()
	go func() {
		out <- <-impl.QueueRequest(&proto.Request{
			Op:   proto.OpWithDB,
			Body: proto.WithDBRequest{},
		})
	}()
	return out
}

// WithParams carry speculative transaction data.
type WithParams struct {
	TxData  interface{}
	Timeout time.Duration
}

// With applies transaction data against a with-db descriptor. The
// descriptor must carry a next-token from WithDB.
func With(db proto.DB, p WithParams) <-chan proto.Response {
	if db.NextToken == "" {
		return anomalyResult(anomaly.New(anomaly.Incorrect, "with requires a db from with-db"))
	}
	impl, anom := implForDB(db)
	if anom != nil {
		return anomalyResult(anom)
	}
	out := make(chan proto.Response, 1)
	go func() {
		out <- <-impl.QueueRequest(&proto.Request{
			Op:      proto.OpWith,
			Timeout: p.Timeout,
			Body: proto.WithRequest{
				DB:     db,
				TxData: p.TxData,
				TxID:   uuid.Must(uuid.NewV4()).String(),
			},
		})
	}()
	return out
}

// DBStats fetches summary statistics for a database value.
func DBStats(db proto.DB) <-chan proto.Response {
	impl, anom := implForDB(db)
	if anom != nil {
		return anomalyResult(anom)
	}
	out := make(chan proto.Response, 1)
	go func() {
		resp := <-impl.QueueRequest(&proto.Request{
			Op:   proto.OpDBStats,
			Body: proto.DBStatsRequest{DB: db},
		})
		out <- extractResult(resp, false)
	}()
	return out
}

// ErrorP reports whether a response value is an anomaly, mirroring the
// wire-level error predicate.
func ErrorP(resp proto.Response) bool {
	return resp.Anomaly != nil
}

// implForDB locates the connection serving a descriptor through the
// cache. After Shutdown the mapping is gone and network operations on
// old descriptors fail here.
func implForDB(db proto.DB) (*transport.Impl, *anomaly.Anomaly) {
	conn := cache.byID(db.DatabaseID)
	if conn == nil {
		return nil, anomaly.Newf(anomaly.NotFound,
			"no connection for database-id %s", db.DatabaseID)
	}
	return conn.Impl(), nil
}

// extractResult narrows a successful response to its result field.
func extractResult(resp proto.Response, emptyMapDefault bool) proto.Response {
	if resp.Anomaly != nil {
		return resp
	}
	result, ok := resp.Field("result")
	if !ok && emptyMapDefault {
		result = map[string]interface{}{}
	}
	return proto.Response{Body: result}
}

func anomalyResult(anom *anomaly.Anomaly) <-chan proto.Response {
	out := make(chan proto.Response, 1)
	out <- proto.Response{Anomaly: anom}
	return out
}

func anomalyStream(anom *anomaly.Anomaly) <-chan proto.Response {
	out := make(chan proto.Response, 1)
	out <- proto.Response{Anomaly: anom}
	close(out)
	return out
}

func defaultLimit(limit int64) int64 {
	if limit == 0 {
		return proto.DefaultLimit
	}
	return limit
}

func boundChunk(chunk int64) int64 {
	if chunk <= 0 {
		return proto.DefaultChunk
	}
	if chunk > proto.MaxChunk {
		return proto.MaxChunk
	}
	return chunk
}
