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

// Package transport implements the request/response pipeline: building
// and signing HTTP requests, submitting them with per-request deadlines,
// classifying responses into bodies or anomalies, retrying busy
// responses and driving chunked results.
package transport

import (
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nanodb/nanodb-go/conf"
	"github.com/nanodb/nanodb-go/crypto/hmacsign"
	"github.com/nanodb/nanodb-go/proto"
)

// Transport submits one HTTP request under a deadline. The process-wide
// default wraps net/http with the client trust material; tests swap in
// fakes.
type Transport interface {
	Submit(req *http.Request, timeout time.Duration) (*http.Response, error)
}

// Endpoint is a parsed service address.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// Impl is the connection implementation: everything a request needs that
// is shared by all calls on one logical connection. State is nil on the
// throwaway impls used by catalog administration.
type Impl struct {
	Endpoint   Endpoint
	Creds      hmacsign.Credentials
	Timeout    time.Duration
	DatabaseID string
	State      *proto.State
	Transport  Transport
}

var (
	defaultOnce      sync.Once
	defaultTransport Transport
)

// Default returns the process-wide HTTP transport, creating it on first
// use with the configured trust material.
func Default() Transport {
	defaultOnce.Do(func() {
		tlsConfig, err := trustConfig()
		if err != nil {
			log.WithError(err).Error("falling back to default trust roots")
			tlsConfig = nil
		}
		maxIdle := 16
		if s := conf.Load(); s.MaxIdleConnsPerHost > 0 {
			maxIdle = s.MaxIdleConnsPerHost
		}
		defaultTransport = &httpTransport{
			client: &http.Client{
				Transport: &http.Transport{
					TLSClientConfig:     tlsConfig,
					MaxIdleConnsPerHost: maxIdle,
				},
			},
		}
	})
	return defaultTransport
}

type httpTransport struct {
	client *http.Client
}

// Submit runs the request on a shallow per-call copy of the client so
// the timeout covers dialing through reading the body.
func (t *httpTransport) Submit(req *http.Request, timeout time.Duration) (*http.Response, error) {
	c := *t.client
	c.Timeout = timeout
	return c.Do(req)
}
