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

// Package anomaly defines the error values flowing through the client
// pipeline. Failures are categorized values handed to callers on result
// channels, never panics and never plain errors.
package anomaly

import (
	"fmt"
	"strings"
)

// Category tags an anomaly with its failure class.
type Category string

// The closed set of anomaly categories.
const (
	Incorrect   Category = "incorrect"
	Forbidden   Category = "forbidden"
	Busy        Category = "busy"
	Unavailable Category = "unavailable"
	NotFound    Category = "not-found"
	Interrupted Category = "interrupted"
	Fault       Category = "fault"
)

// Wire keys used by the server when a response body itself is an anomaly.
const (
	wireCategoryKey = "cognitect.anomalies/category"
	wireMessageKey  = "cognitect.anomalies/message"
	wirePrefix      = "cognitect.anomalies/"
)

// Anomaly describes a failed operation. HTTPResult carries the decoded
// response body when the anomaly was derived from an HTTP error status.
type Anomaly struct {
	Category   Category    `codec:"cognitect.anomalies/category"`
	Message    string      `codec:"cognitect.anomalies/message,omitempty"`
	HTTPResult interface{} `codec:"http-result,omitempty"`
}

// Error implements error so anomalies can be wrapped internally. Callers
// receive anomalies as values, not as returned errors.
func (a *Anomaly) Error() string {
	if a.Message == "" {
		return string(a.Category)
	}
	return fmt.Sprintf("%s: %s", a.Category, a.Message)
}

// New builds an anomaly from a category and message.
func New(cat Category, msg string) *Anomaly {
	return &Anomaly{Category: cat, Message: msg}
}

// Newf builds an anomaly from a category and a formatted message.
func Newf(cat Category, format string, args ...interface{}) *Anomaly {
	return &Anomaly{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// FromError converts an internal error to an anomaly, recording the
// error's concrete type alongside its message.
func FromError(cat Category, err error) *Anomaly {
	return &Anomaly{Category: cat, Message: fmt.Sprintf("%T %s", err, err.Error())}
}

// ParseCategory normalizes a wire category string to a member of the
// closed set. Keyword colons and the anomaly namespace are stripped, and
// the historical misspelling of unavailable is accepted. Unknown strings
// yield the empty category.
func ParseCategory(s string) Category {
	s = strings.TrimPrefix(s, ":")
	s = strings.TrimPrefix(s, wirePrefix)
	switch Category(s) {
	case Incorrect, Forbidden, Busy, Unavailable, NotFound, Interrupted, Fault:
		return Category(s)
	}
	if s == "unvailable" {
		return Unavailable
	}
	return ""
}

// Of extracts the anomaly carried by v, or nil. It recognizes *Anomaly
// itself and decoded response bodies holding a wire category field.
func Of(v interface{}) *Anomaly {
	switch t := v.(type) {
	case *Anomaly:
		return t
	case Anomaly:
		return &t
	case map[string]interface{}:
		raw, ok := t[wireCategoryKey]
		if !ok {
			raw, ok = t["category"]
		}
		if !ok {
			return nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil
		}
		cat := ParseCategory(s)
		if cat == "" {
			return nil
		}
		a := &Anomaly{Category: cat}
		if msg, ok := t[wireMessageKey].(string); ok {
			a.Message = msg
		} else if msg, ok := t["message"].(string); ok {
			a.Message = msg
		}
		return a
	}
	return nil
}

// Is reports whether v carries an anomaly category.
func Is(v interface{}) bool {
	return Of(v) != nil
}
