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
	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/proto"
)

// Index names the four sort orders over datoms.
const (
	IndexEAVT = "eavt"
	IndexAEVT = "aevt"
	IndexAVET = "avet"
	IndexVAET = "vaet"
)

// indexOrders maps an index onto the key each positional component binds
// to. The fourth position, t, is implicit in the db snapshot and never
// bound from components.
var indexOrders = map[string][4]string{
	IndexEAVT: {"e", "a", "v", "t"},
	IndexAEVT: {"a", "e", "v", "t"},
	IndexAVET: {"a", "v", "e", "t"},
	IndexVAET: {"v", "a", "e", "t"},
}

// bindComponents writes each component into the request field named by
// its position in the index order. At most three components are
// accepted.
func bindComponents(index string, components []interface{}, req *proto.DatomsRequest) *anomaly.Anomaly {
	order, ok := indexOrders[index]
	if !ok {
		return anomaly.Newf(anomaly.Incorrect, "Unknown index %q", index)
	}
	if len(components) > 3 {
		return anomaly.Newf(anomaly.Incorrect,
			"components accepts at most 3 values, got %d", len(components))
	}
	for i, c := range components {
		switch order[i] {
		case "e":
			req.E = c
		case "a":
			req.A = c
		case "v":
			req.V = c
		}
	}
	return nil
}
