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
	"github.com/nanodb/nanodb-go/transport"
)

// The administrative operations are thin wrappers over the pipeline:
// resolve the config, build a throwaway impl without a database, issue
// one catalog op.

// CreateDatabase creates the database named by the config's db-name.
func CreateDatabase(userArgs *Config) <-chan proto.Response {
	return catalogOp(userArgs, proto.OpCreateDB, false)
}

// DeleteDatabase deletes the database named by the config's db-name,
// forgetting any cached connection for the config first.
func DeleteDatabase(userArgs *Config) <-chan proto.Response {
	return catalogOp(userArgs, proto.OpDeleteDB, true)
}

// ListDatabases lists the databases under the account.
func ListDatabases(userArgs *Config) <-chan proto.Response {
	out := make(chan proto.Response, 1)
	go func() {
		_, impl, anom := adminImpl(userArgs)
		if anom != nil {
			out <- proto.Response{Anomaly: anom}
			return
		}
		resp := <-impl.QueueRequest(&proto.Request{
			Op:   proto.OpListDBs,
			Body: proto.ListDBsRequest{},
		})
		out <- extractResult(resp, false)
	}()
	return out
}

func catalogOp(userArgs *Config, op proto.Op, forget bool) <-chan proto.Response {
	out := make(chan proto.Response, 1)
	go func() {
		cfg, impl, anom := adminImpl(userArgs)
		if anom != nil {
			out <- proto.Response{Anomaly: anom}
			return
		}
		if forget {
			cache.forgetConfig(cfg)
		}
		var body interface{}
		switch op {
		case proto.OpCreateDB:
			body = proto.CreateDBRequest{DBName: cfg.DBName}
		case proto.OpDeleteDB:
			body = proto.DeleteDBRequest{DBName: cfg.DBName}
		}
		out <- <-impl.QueueRequest(&proto.Request{Op: op, Body: body})
	}()
	return out
}

// adminImpl resolves the config and builds a throwaway impl with no
// database-id and no watermark.
func adminImpl(userArgs *Config) (Config, *transport.Impl, *anomaly.Anomaly) {
	cfg, anom := ResolveConfig(userArgs)
	if anom != nil {
		return cfg, nil, anom
	}
	impl, anom := newImpl(cfg)
	if anom != nil {
		return cfg, nil, anom
	}
	return cfg, impl, nil
}
