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
	"github.com/nanodb/nanodb-go/proto"
	"github.com/nanodb/nanodb-go/transport"
)

// Connection is the logical handle to one database. It exposes the small
// capability set the facade operations need; the single implementation
// wraps a validated config and its shared connection impl.
type Connection interface {
	AccountID() string
	DBName() string
	DatabaseID() string
	State() *proto.State
	Impl() *transport.Impl
	Config() Config
	// Map is the mapping view of the handle, for inspection and logs.
	Map() map[string]interface{}
}

type connection struct {
	cfg  Config
	impl *transport.Impl
}

func (c *connection) AccountID() string     { return c.cfg.AccountID }
func (c *connection) DBName() string        { return c.cfg.DBName }
func (c *connection) DatabaseID() string    { return c.impl.DatabaseID }
func (c *connection) State() *proto.State   { return c.impl.State }
func (c *connection) Impl() *transport.Impl { return c.impl }
func (c *connection) Config() Config        { return c.cfg }

func (c *connection) Map() map[string]interface{} {
	basis := c.impl.State.Load()
	return map[string]interface{}{
		"account-id":  c.cfg.AccountID,
		"db-name":     c.cfg.DBName,
		"database-id": c.impl.DatabaseID,
		"t":           basis.T,
		"next-t":      basis.NextT,
		"endpoint":    c.cfg.Endpoint,
	}
}
