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
	"bytes"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/nanodb/nanodb-go/codec"
	"github.com/nanodb/nanodb-go/transport"
)

// fakeServer answers by op header and records every request with its
// decoded body.
type fakeServer struct {
	mu      sync.Mutex
	ops     []string
	reqs    []*http.Request
	bodies  []interface{}
	handler func(op string, body interface{}) *http.Response
}

func (f *fakeServer) Submit(req *http.Request, timeout time.Duration) (*http.Response, error) {
	raw, _ := ioutil.ReadAll(req.Body)
	body, _ := codec.Unmarshal(bytes.NewReader(raw), codec.Msgpack)
	op := req.Header.Get(transport.HeaderOp)

	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.reqs = append(f.reqs, req)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	return f.handler(op, body), nil
}

func (f *fakeServer) opCount(op string) (n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.ops {
		if o == op {
			n++
		}
	}
	return
}

func (f *fakeServer) lastBody(op string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.ops) - 1; i >= 0; i-- {
		if f.ops[i] == op {
			return f.bodies[i]
		}
	}
	return nil
}

func msgpackResponse(status int, body interface{}) *http.Response {
	p, err := codec.Marshal(body)
	if err != nil {
		panic(err)
	}
	h := http.Header{}
	h.Set("content-type", codec.ContentTypeMsgpack)
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       ioutil.NopCloser(bytes.NewReader(p.Bytes[:p.Length])),
	}
}

// connServer behaves like a healthy endpoint for one database.
func connServer(databaseID string, t, nextT int64) *fakeServer {
	fs := &fakeServer{}
	fs.handler = func(op string, body interface{}) *http.Response {
		switch op {
		case "datomic.catalog/resolve-db":
			return msgpackResponse(200, map[string]interface{}{"database-id": databaseID})
		case "datomic.client.protocol/status":
			return msgpackResponse(200, map[string]interface{}{"t": t, "next-t": nextT})
		default:
			return msgpackResponse(200, map[string]interface{}{
				"data":   []interface{}{},
				"result": map[string]interface{}{},
			})
		}
	}
	return fs
}

// withFakeTransport swaps the transport factory for the duration of fn.
func withFakeTransport(fs *fakeServer, fn func()) {
	orig := newTransport
	newTransport = func() transport.Transport { return fs }
	defer func() { newTransport = orig }()
	fn()
}

// uniqueConfig builds a complete config distinct per db name, so tests
// sharing the process-wide cache stay independent.
func uniqueConfig(dbName string) *Config {
	return &Config{
		AccountID: "acct",
		AccessKey: "ak",
		Secret:    "sk",
		Endpoint:  "db.example.com:8998",
		Service:   "peer-server",
		Region:    "none",
		DBName:    dbName,
	}
}
