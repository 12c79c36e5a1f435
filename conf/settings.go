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

// Package conf holds ambient client settings: knobs for the transport
// and logging that are not part of any connection configuration. They
// load once from an optional YAML file and never participate in
// connection identity.
package conf

import (
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// SettingsPathEnv overrides the settings file location.
const SettingsPathEnv = "NANODB_CLIENT_SETTINGS"

const defaultSettingsFile = "client.yaml"

// Settings are ambient client knobs.
type Settings struct {
	// LogLevel is a logrus level name, empty to leave the default.
	LogLevel string `yaml:"LogLevel"`
	// CACertsFile points at an extra PEM bundle for the trust store.
	CACertsFile string `yaml:"CACertsFile"`
	// MaxIdleConnsPerHost sizes the HTTP connection pool.
	MaxIdleConnsPerHost int `yaml:"MaxIdleConnsPerHost"`
}

var (
	once     sync.Once
	settings Settings
)

// Load returns the process settings, reading the settings file on first
// call. A missing file yields zero settings.
func Load() Settings {
	once.Do(func() {
		path := os.Getenv(SettingsPathEnv)
		if path == "" {
			home, err := homeDir()
			if err != nil {
				return
			}
			path = filepath.Join(home, ".datomic", defaultSettingsFile)
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).WithField("path", path).Error("read client settings")
			}
			return
		}
		if err = yaml.Unmarshal(data, &settings); err != nil {
			log.WithError(err).WithField("path", path).Error("unmarshal client settings")
			settings = Settings{}
			return
		}
		if settings.LogLevel != "" {
			if lvl, err := log.ParseLevel(settings.LogLevel); err == nil {
				log.SetLevel(lvl)
			}
		}
	})
	return settings
}

func homeDir() (string, error) {
	if h := os.Getenv("HOME"); h != "" {
		return h, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.HomeDir, nil
}
