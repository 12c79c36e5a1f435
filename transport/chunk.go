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
	"github.com/nanodb/nanodb-go/proto"
)

// QueueChunkedRequest submits req and keeps issuing next operations
// while responses carry a continuation offset. Each response's field
// value is delivered as one chunk. The channel is unbuffered so the
// consumer paces the fetching, and it closes after the final chunk or
// after an anomaly is delivered.
func (impl *Impl) QueueChunkedRequest(req *proto.Request, field string, chunkSize int64) <-chan proto.Response {
	out := make(chan proto.Response)

	go func() {
		defer close(out)
		resp := <-impl.QueueRequest(req)
		for {
			if resp.Anomaly != nil {
				out <- resp
				return
			}

			chunkVal, _ := resp.Field(field)
			out <- proto.Response{Body: chunkVal}

			offset, more := proto.NextOffsetOf(resp.Body)
			if !more {
				return
			}
			token, _ := proto.NextTokenOf(resp.Body)
			size := chunkSize
			if echoed, ok := proto.ChunkOf(resp.Body); ok {
				size = echoed
			}

			next := &proto.Request{
				Op:        proto.OpNext,
				Timeout:   req.Timeout,
				NextToken: token,
				Body:      proto.NextRequest{NextOffset: offset, Chunk: size},
			}
			resp = <-impl.QueueRequest(next)
		}
	}()

	return out
}
