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
	"time"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/codec"
	"github.com/nanodb/nanodb-go/proto"
)

// QueueRequest marshals and submits one logical request, retrying busy
// responses, and returns the single-shot channel carrying the classified
// result.
func (impl *Impl) QueueRequest(req *proto.Request) <-chan proto.Response {
	result := make(chan proto.Response, 1)

	timeout := req.Timeout
	if timeout == 0 {
		timeout = impl.Timeout
	}

	payload, err := codec.Marshal(req.Body)
	if err != nil {
		result <- proto.Response{Anomaly: anomaly.FromError(anomaly.Fault, err)}
		return result
	}

	go WithRetry(func() <-chan proto.Response {
		attempt := make(chan proto.Response, 1)
		go func() {
			attempt <- impl.submitOnce(req, payload, timeout)
		}()
		return attempt
	}, result, BusyBackoff(retryStart, retryMax, retryFactor))

	return result
}

// submitOnce runs one attempt: build, sign, submit, classify. The HTTP
// request is rebuilt per attempt so the body reader starts fresh.
func (impl *Impl) submitOnce(req *proto.Request, payload codec.Payload, timeout time.Duration) proto.Response {
	httpReq, err := impl.BuildRequest(req, payload)
	if err != nil {
		return proto.Response{Anomaly: anomaly.FromError(anomaly.Fault, err)}
	}
	httpResp, submitErr := impl.Transport.Submit(httpReq, timeout)
	return Classify(httpResp, submitErr, impl.State)
}
