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

	log "github.com/sirupsen/logrus"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/proto"
)

// Retry parameters for busy responses.
const (
	retryStart  = 100 * time.Millisecond
	retryMax    = 200 * time.Millisecond
	retryFactor = 2
)

// Backoff inspects a response and returns the delay before the next
// attempt, or ok=false to stop and deliver the response as-is.
type Backoff func(resp proto.Response) (delay time.Duration, ok bool)

// WithRetry calls reqFn until the backoff declines, then delivers the
// final response on result.
func WithRetry(reqFn func() <-chan proto.Response, result chan<- proto.Response, backoff Backoff) {
	for {
		resp := <-reqFn()
		delay, again := backoff(resp)
		if !again {
			result <- resp
			return
		}
		log.WithField("delay", delay).Debug("retrying busy request")
		time.Sleep(delay)
	}
}

// BusyBackoff is the ratchet used by the dispatcher: it fires only on
// busy anomalies, starts at start and multiplies by factor per call,
// giving up once the delay exceeds max.
func BusyBackoff(start, max time.Duration, factor int64) Backoff {
	delay := start / time.Duration(factor)
	return func(resp proto.Response) (time.Duration, bool) {
		if resp.Anomaly == nil || resp.Anomaly.Category != anomaly.Busy {
			return 0, false
		}
		delay *= time.Duration(factor)
		if delay > max {
			return 0, false
		}
		return delay, true
	}
}
