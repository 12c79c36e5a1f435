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
	"crypto/x509"
	"io/ioutil"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTrustConfig(t *testing.T) {
	Convey("the bundled transactor certificate parses and is trusted", t, func() {
		cfg, err := trustConfig()
		So(err, ShouldBeNil)
		So(cfg, ShouldNotBeNil)
		So(cfg.RootCAs, ShouldNotBeNil)
	})
}

func TestAppendBundle(t *testing.T) {
	Convey("a PEM bundle on disk is appended", t, func() {
		f, err := ioutil.TempFile("", "nanodb-ca")
		So(err, ShouldBeNil)
		defer os.Remove(f.Name())
		_, err = f.WriteString(transactorTrustPEM)
		So(err, ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		pool := x509.NewCertPool()
		So(appendBundle(pool, f.Name()), ShouldBeNil)
		So(len(pool.Subjects()), ShouldEqual, 1)
	})

	Convey("a missing bundle is an error", t, func() {
		pool := x509.NewCertPool()
		So(appendBundle(pool, "/nonexistent/bundle.pem"), ShouldNotBeNil)
	})

	Convey("a bundle without certificates is an error", t, func() {
		f, err := ioutil.TempFile("", "nanodb-ca-empty")
		So(err, ShouldBeNil)
		defer os.Remove(f.Name())
		_, err = f.WriteString("not pem at all")
		So(err, ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		pool := x509.NewCertPool()
		So(appendBundle(pool, f.Name()), ShouldNotBeNil)
	})
}
