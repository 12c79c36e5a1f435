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
	"sync"
)

// connCache interns connections three ways: by config, by database-id
// and back from connection to config. One mutex guards all three so
// readers always see a consistent snapshot, and no lock is ever held
// across I/O.
type connCache struct {
	mu        sync.RWMutex
	idByCfg   map[Config]string
	connByID  map[string]Connection
	cfgByConn map[Connection]Config
}

func newConnCache() *connCache {
	return &connCache{
		idByCfg:   make(map[Config]string),
		connByID:  make(map[string]Connection),
		cfgByConn: make(map[Connection]Config),
	}
}

// cache is the process-wide connection intern table.
var cache = newConnCache()

// put installs all three directions.
func (c *connCache) put(cfg Config, databaseID string, conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idByCfg[cfg] = databaseID
	c.connByID[databaseID] = conn
	c.cfgByConn[conn] = cfg
}

// byConfig follows config to database-id to connection.
func (c *connCache) byConfig(cfg Config) Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.idByCfg[cfg]
	if !ok {
		return nil
	}
	return c.connByID[id]
}

// byID looks a connection up by database-id.
func (c *connCache) byID(databaseID string) Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connByID[databaseID]
}

// forgetConn removes the connection's three entries. Missing links make
// it a no-op.
func (c *connCache) forgetConn(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.cfgByConn[conn]
	if !ok {
		return
	}
	id, ok := c.idByCfg[cfg]
	if !ok {
		return
	}
	delete(c.cfgByConn, conn)
	delete(c.idByCfg, cfg)
	delete(c.connByID, id)
}

// forgetConfig is the symmetric removal starting from a config.
func (c *connCache) forgetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.idByCfg[cfg]
	if !ok {
		return
	}
	conn, ok := c.connByID[id]
	if !ok {
		return
	}
	delete(c.idByCfg, cfg)
	delete(c.connByID, id)
	delete(c.cfgByConn, conn)
}
