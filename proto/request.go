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
	"strings"
	"time"
)

// Op names a protocol operation. Catalog operations carry their namespace
// explicitly; everything else lives in the client protocol namespace.
type Op string

// Client protocol operations.
const (
	OpStatus     Op = "status"
	OpDatoms     Op = "datoms"
	OpIndexRange Op = "index-range"
	OpPull       Op = "pull"
	OpQ          Op = "q"
	OpTxRange    Op = "tx-range"
	OpTransact   Op = "transact"
	OpWithDB     Op = "with-db"
	OpWith       Op = "with"
	OpDBStats    Op = "db-stats"
	OpNext       Op = "next"
)

// Catalog operations.
const (
	OpResolveDB Op = "datomic.catalog/resolve-db"
	OpCreateDB  Op = "datomic.catalog/create-db"
	OpDeleteDB  Op = "datomic.catalog/delete-db"
	OpListDBs   Op = "datomic.catalog/list-dbs"
)

const (
	catalogNamespace = "datomic.catalog"
	clientNamespace  = "datomic.client.protocol"
)

// Catalog reports whether the op belongs to the catalog namespace.
func (o Op) Catalog() bool {
	return strings.HasPrefix(string(o), catalogNamespace+"/")
}

// Qualified returns the namespaced op string placed in the x-nano-op
// header.
func (o Op) Qualified() string {
	if o.Catalog() {
		return string(o)
	}
	return clientNamespace + "/" + string(o)
}

// Request is one logical request on a connection. Body is the payload to
// marshal; Op, Timeout and NextToken travel outside the payload.
type Request struct {
	Op        Op
	Timeout   time.Duration // zero means use the connection default
	NextToken string
	Body      interface{}
}

// Chunked request defaults and bounds.
const (
	DefaultLimit   = 1000
	DefaultChunk   = 1000
	MaxChunk       = 10000
	UnlimitedLimit = -1
	DefaultTimeout = 60000 * time.Millisecond
)

// ResolveDBRequest asks the catalog for the database-id of a named db.
type ResolveDBRequest struct {
	DBName string `codec:"db-name"`
}

// CreateDBRequest creates a named database.
type CreateDBRequest struct {
	DBName string `codec:"db-name"`
}

// DeleteDBRequest deletes a named database.
type DeleteDBRequest struct {
	DBName string `codec:"db-name"`
}

// ListDBsRequest lists database names under the account.
type ListDBsRequest struct{}

// StatusRequest fetches the current watermark of a database.
type StatusRequest struct {
	DatabaseID string `codec:"database-id"`
}

// DatomsRequest reads an index in order. The component fields e, a and v
// are bound from the positional components vector according to the index
// ordering; absent components are omitted from the wire.
type DatomsRequest struct {
	DB
	Index  string      `codec:"index"`
	E      interface{} `codec:"e,omitempty"`
	A      interface{} `codec:"a,omitempty"`
	V      interface{} `codec:"v,omitempty"`
	Offset int64       `codec:"offset"`
	Limit  int64       `codec:"limit"`
	Chunk  int64       `codec:"chunk"`
}

// IndexRangeRequest reads a slice of the avet index for one attribute.
type IndexRangeRequest struct {
	DB
	Attrid interface{} `codec:"attrid"`
	Start  interface{} `codec:"start,omitempty"`
	End    interface{} `codec:"end,omitempty"`
	Offset int64       `codec:"offset"`
	Limit  int64       `codec:"limit"`
	Chunk  int64       `codec:"chunk"`
}

// PullRequest fetches a hierarchical selection for one entity.
type PullRequest struct {
	DB
	Selector interface{} `codec:"selector"`
	EID      interface{} `codec:"eid"`
}

// QRequest executes a declarative query. Databases referenced by the
// query travel in Args as descriptors.
type QRequest struct {
	Query  interface{}   `codec:"query"`
	Args   []interface{} `codec:"args"`
	Offset int64         `codec:"offset"`
	Limit  int64         `codec:"limit"`
	Chunk  int64         `codec:"chunk"`
}

// TxRangeRequest reads the transaction log between two points.
type TxRangeRequest struct {
	Start  interface{} `codec:"start,omitempty"`
	End    interface{} `codec:"end,omitempty"`
	Offset int64       `codec:"offset"`
	Limit  int64       `codec:"limit"`
	Chunk  int64       `codec:"chunk"`
}

// TransactRequest submits transaction data. TxID is a fresh UUID minted
// per call so the server can deduplicate resubmissions.
type TransactRequest struct {
	TxData interface{} `codec:"tx-data"`
	TxID   string      `codec:"tx-id"`
}

// WithDBRequest obtains a branch point for speculative transactions.
type WithDBRequest struct{}

// WithRequest applies transaction data speculatively against a with-db.
type WithRequest struct {
	DB
	TxData interface{} `codec:"tx-data"`
	TxID   string      `codec:"tx-id"`
}

// DBStatsRequest fetches summary statistics for a database value.
type DBStatsRequest struct {
	DB
}

// NextRequest continues a chunked result. The continuation token itself
// travels in the x-nano-next header, not the body.
type NextRequest struct {
	NextOffset int64 `codec:"next-offset"`
	Chunk      int64 `codec:"chunk"`
}
