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

// Package hmacsign attaches authentication headers to outgoing requests
// using a symmetric HMAC-SHA256 key chain derived from the account
// credentials. The rest of the pipeline treats it as opaque: a
// well-formed request goes in, an equivalent request with authentication
// headers comes out.
package hmacsign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const (
	algorithm   = "NANO1-HMAC-SHA256"
	keyPrefix   = "NANO1"
	terminator  = "nano1_request"
	dateHeader  = "x-nano-date"
	authHeader  = "authorization"
	timeFormat  = "20060102T150405Z"
	scopeFormat = "20060102"
)

// Credentials parameterize the signer.
type Credentials struct {
	AccessKey string
	Secret    string
	Service   string
	Region    string
}

// derived signing keys are stable for a calendar day per credential
// scope, so cache them instead of re-running the HMAC chain per request.
var keyCache *lru.Cache

func init() {
	var err error
	if keyCache, err = lru.New(128); err != nil {
		panic(err)
	}
}

// Sign signs req in place over the given body bytes at the current time.
func Sign(req *http.Request, body []byte, creds Credentials) error {
	return SignAt(req, body, creds, time.Now().UTC())
}

// SignAt signs req at an explicit time. Exposed so signing stays
// reproducible under test.
func SignAt(req *http.Request, body []byte, creds Credentials, at time.Time) (err error) {
	if creds.AccessKey == "" || creds.Secret == "" {
		return errors.New("missing signing credentials")
	}

	at = at.UTC()
	stamp := at.Format(timeFormat)
	date := at.Format(scopeFormat)
	req.Header.Set(dateHeader, stamp)

	names, canonHeaders := canonicalHeaders(req)
	signedHeaders := strings.Join(names, ";")

	bodySum := sha256.Sum256(body)
	canonical := strings.Join([]string{
		req.Method,
		req.URL.Path,
		req.URL.RawQuery,
		canonHeaders,
		signedHeaders,
		hex.EncodeToString(bodySum[:]),
	}, "\n")

	scope := strings.Join([]string{date, creds.Region, creds.Service, terminator}, "/")
	canonicalSum := sha256.Sum256([]byte(canonical))
	toSign := strings.Join([]string{
		algorithm,
		stamp,
		scope,
		hex.EncodeToString(canonicalSum[:]),
	}, "\n")

	key := signingKey(creds, date)
	signature := hex.EncodeToString(hmacSum(key, toSign))

	req.Header.Set(authHeader, strings.Join([]string{
		algorithm + " Credential=" + creds.AccessKey + "/" + scope,
		"SignedHeaders=" + signedHeaders,
		"Signature=" + signature,
	}, ", "))
	return
}

// canonicalHeaders picks host, content-type and every x-nano-* header,
// lower-cased and sorted.
func canonicalHeaders(req *http.Request) (names []string, canonical string) {
	picked := map[string]string{}
	if req.Host != "" {
		picked["host"] = req.Host
	}
	for name, vals := range req.Header {
		ln := strings.ToLower(name)
		if ln == "host" || ln == "content-type" || strings.HasPrefix(ln, "x-nano-") {
			picked[ln] = strings.TrimSpace(strings.Join(vals, ","))
		}
	}
	names = make([]string, 0, len(picked))
	for name := range picked {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(picked[name])
		b.WriteByte('\n')
	}
	return names, b.String()
}

// signingKey runs the daily key chain, consulting the cache first.
func signingKey(creds Credentials, date string) []byte {
	cacheKey := strings.Join([]string{creds.Secret, date, creds.Region, creds.Service}, "\x00")
	if v, ok := keyCache.Get(cacheKey); ok {
		return v.([]byte)
	}
	k := hmacSum([]byte(keyPrefix+creds.Secret), date)
	k = hmacSum(k, creds.Region)
	k = hmacSum(k, creds.Service)
	k = hmacSum(k, terminator)
	keyCache.Add(cacheKey, k)
	return k
}

func hmacSum(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
