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

package transport

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/nanodb/nanodb-go/codec"
	"github.com/nanodb/nanodb-go/crypto/hmacsign"
	"github.com/nanodb/nanodb-go/proto"
)

// fakeTransport replays canned responses and records every submitted
// request.
type fakeTransport struct {
	mu        sync.Mutex
	submitted []*http.Request
	bodies    [][]byte
	replies   []reply
}

type reply struct {
	resp *http.Response
	err  error
}

func (f *fakeTransport) Submit(req *http.Request, timeout time.Duration) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body []byte
	if req.Body != nil {
		body, _ = ioutil.ReadAll(req.Body)
	}
	f.submitted = append(f.submitted, req)
	f.bodies = append(f.bodies, body)

	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r.resp, r.err
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func (f *fakeTransport) request(i int) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted[i]
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

func emptyResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       ioutil.NopCloser(bytes.NewReader(nil)),
	}
}

func testImpl(t Transport, state *proto.State) *Impl {
	return &Impl{
		Endpoint: Endpoint{Scheme: "https", Host: "db.example.com", Port: 443},
		Creds: hmacsign.Credentials{
			AccessKey: "AK", Secret: "SECRET", Service: "peer-server", Region: "none",
		},
		Timeout:    time.Second,
		DatabaseID: "db-id-1",
		State:      state,
		Transport:  t,
	}
}

func busyBody() map[string]interface{} {
	return map[string]interface{}{
		"cognitect.anomalies/category": "cognitect.anomalies/busy",
	}
}
