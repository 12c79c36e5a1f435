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
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/codec"
	"github.com/nanodb/nanodb-go/proto"
)

// Classify turns a transport outcome into a response: a body-carried
// anomaly first, then a transport error, then an HTTP error status, then
// the body itself. On success with a dbs watermark the connection state
// advances monotonically.
func Classify(httpResp *http.Response, submitErr error, state *proto.State) proto.Response {
	if submitErr != nil {
		return proto.Response{Anomaly: transportAnomaly(submitErr)}
	}
	defer httpResp.Body.Close()

	var body interface{}
	raw, readErr := codec.ReadAll(httpResp.Body)
	if readErr != nil {
		return proto.Response{Anomaly: anomaly.FromError(anomaly.Fault, readErr)}
	}
	if len(raw) > 0 {
		var anom *anomaly.Anomaly
		body, anom = codec.DecodeBody(httpResp.Header.Get("content-type"), raw)
		if anom != nil {
			// a body anomaly beats the status code, a decode failure
			// only matters when the status was otherwise fine
			if statusAnom := statusAnomaly(httpResp.StatusCode, string(raw)); statusAnom != nil {
				return proto.Response{Anomaly: statusAnom}
			}
			return proto.Response{Anomaly: anom}
		}
	}

	if anom := anomaly.Of(body); anom != nil {
		return proto.Response{Anomaly: anom}
	}
	if anom := statusAnomaly(httpResp.StatusCode, body); anom != nil {
		return proto.Response{Anomaly: anom}
	}

	if state != nil {
		if basis, ok := proto.BasisOf(body); ok {
			state.Advance(basis)
		}
	}
	return proto.Response{Body: body}
}

// transportAnomaly maps submission errors onto categories: deadline
// expiry interrupts, failed dials are unavailable, failed resolution is
// not-found, everything else is a fault.
func transportAnomaly(err error) *anomaly.Anomaly {
	cause := err
	if uerr, ok := cause.(*url.Error); ok {
		cause = uerr.Err
	}

	if cause == context.DeadlineExceeded {
		return anomaly.FromError(anomaly.Interrupted, err)
	}
	if nerr, ok := cause.(net.Error); ok && nerr.Timeout() {
		return anomaly.FromError(anomaly.Interrupted, err)
	}
	if operr, ok := cause.(*net.OpError); ok {
		if _, dns := operr.Err.(*net.DNSError); dns {
			return anomaly.FromError(anomaly.NotFound, err)
		}
		return anomaly.FromError(anomaly.Unavailable, err)
	}
	if _, ok := cause.(*net.DNSError); ok {
		return anomaly.FromError(anomaly.NotFound, err)
	}
	return anomaly.FromError(anomaly.Fault, err)
}

// statusAnomaly maps HTTP error statuses, attaching the body under the
// http-result field. 504 keeps its documented historical category.
func statusAnomaly(status int, body interface{}) *anomaly.Anomaly {
	var cat anomaly.Category
	switch {
	case status == http.StatusForbidden:
		cat = anomaly.Forbidden
	case status == http.StatusServiceUnavailable:
		cat = anomaly.Busy
	case status == http.StatusGatewayTimeout:
		cat = anomaly.Unavailable
	case status >= 400 && status < 500:
		cat = anomaly.Incorrect
	case status >= 500 && status < 600:
		cat = anomaly.Fault
	default:
		return nil
	}
	a := anomaly.Newf(cat, "HTTP status %d", status)
	a.HTTPResult = body
	return a
}
