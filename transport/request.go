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
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/nanodb/nanodb-go/codec"
	"github.com/nanodb/nanodb-go/crypto/hmacsign"
	"github.com/nanodb/nanodb-go/proto"
)

// Protocol headers.
const (
	HeaderOp     = "x-nano-op"
	HeaderTarget = "x-nano-target"
	HeaderNext   = "x-nano-next"
)

// BuildRequest turns a logical request and its marshalled payload into a
// signed HTTP POST. Catalog operations address the account, not a
// database, so they carry no target header.
func (impl *Impl) BuildRequest(req *proto.Request, payload codec.Payload) (httpReq *http.Request, err error) {
	body := payload.Bytes[:payload.Length]
	url := fmt.Sprintf("%s://%s:%d/", impl.Endpoint.Scheme, impl.Endpoint.Host, impl.Endpoint.Port)

	httpReq, err = http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	httpReq.Host = httpReq.URL.Host
	httpReq.Header.Set("content-type", codec.ContentTypeMsgpack)
	httpReq.Header.Set("accept", codec.ContentTypeMsgpack)
	httpReq.Header.Set(HeaderOp, req.Op.Qualified())
	if !req.Op.Catalog() {
		httpReq.Header.Set(HeaderTarget, impl.DatabaseID)
	}
	if req.NextToken != "" {
		httpReq.Header.Set(HeaderNext, req.NextToken)
	}

	if err = hmacsign.Sign(httpReq, body, impl.Creds); err != nil {
		return nil, errors.Wrap(err, "sign request")
	}
	return httpReq, nil
}
