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
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nanodb/nanodb-go/anomaly"
	"github.com/nanodb/nanodb-go/transport"
)

// DefaultTimeout applies when neither config nor request carries one.
const DefaultTimeout = 60000 * time.Millisecond

// Pro peer-server mode uses fixed account and region values.
const (
	ProAccount = "00000000-0000-0000-0000-000000000000"
	ProRegion  = "none"
)

// Environment variables consulted during config resolution.
const (
	EnvAccountID = "DATOMIC_ACCOUNT_ID"
	EnvAccessKey = "DATOMIC_ACCESS_KEY"
	EnvSecret    = "DATOMIC_SECRET"
	EnvEndpoint  = "DATOMIC_ENDPOINT"
	EnvService   = "DATOMIC_SERVICE"
	EnvRegion    = "DATOMIC_REGION"
)

// homeConfigDir and homeConfigFile locate the fallback credentials file.
const (
	homeConfigDir  = ".datomic"
	homeConfigFile = "config"
)

// Config identifies one logical connection. Two configs that compare
// equal share a connection through the cache.
type Config struct {
	AccountID string
	AccessKey string
	Secret    string
	Endpoint  string
	Service   string
	Region    string
	Timeout   time.Duration
	DBName    string
}

// String redacts the secret.
func (cfg Config) String() string {
	secret := cfg.Secret
	if secret != "" {
		secret = "..."
	}
	return fmt.Sprintf(
		"{account-id %q access-key %q secret %q endpoint %q service %q region %q timeout %v db-name %q}",
		cfg.AccountID, cfg.AccessKey, secret, cfg.Endpoint, cfg.Service, cfg.Region, cfg.Timeout, cfg.DBName)
}

// ResolveConfig merges configuration sources in precedence order:
// defaults, then environment, then user args. If the merge is still
// incomplete, the home config file is merged underneath before
// validation.
func ResolveConfig(userArgs *Config) (cfg Config, anom *anomaly.Anomaly) {
	cfg = Config{Timeout: DefaultTimeout}
	cfg = merge(cfg, envConfig())
	if userArgs != nil {
		cfg = merge(cfg, *userArgs)
	}
	if !complete(cfg) {
		cfg = merge(homeConfig(), cfg)
	}
	return Validate(cfg)
}

// Validate returns the config unchanged when complete, otherwise an
// incorrect anomaly.
func Validate(cfg Config) (Config, *anomaly.Anomaly) {
	if !complete(cfg) {
		return cfg, anomaly.Newf(anomaly.Incorrect,
			"Incomplete or invalid connection config: %v", cfg)
	}
	return cfg, nil
}

func complete(cfg Config) bool {
	return cfg.AccountID != "" && cfg.AccessKey != "" && cfg.Secret != "" &&
		cfg.Endpoint != "" && cfg.Service != "" && cfg.Region != ""
}

// merge overlays over onto base, later non-empty values winning.
func merge(base, over Config) Config {
	if over.AccountID != "" {
		base.AccountID = over.AccountID
	}
	if over.AccessKey != "" {
		base.AccessKey = over.AccessKey
	}
	if over.Secret != "" {
		base.Secret = over.Secret
	}
	if over.Endpoint != "" {
		base.Endpoint = over.Endpoint
	}
	if over.Service != "" {
		base.Service = over.Service
	}
	if over.Region != "" {
		base.Region = over.Region
	}
	if over.Timeout != 0 {
		base.Timeout = over.Timeout
	}
	if over.DBName != "" {
		base.DBName = over.DBName
	}
	return base
}

func envConfig() Config {
	return Config{
		AccountID: os.Getenv(EnvAccountID),
		AccessKey: os.Getenv(EnvAccessKey),
		Secret:    os.Getenv(EnvSecret),
		Endpoint:  os.Getenv(EnvEndpoint),
		Service:   os.Getenv(EnvService),
		Region:    os.Getenv(EnvRegion),
	}
}

// homeConfig reads <home>/.datomic/config, a newline-delimited key=value
// file. A missing file contributes nothing; a parse failure is reported
// on stderr and contributes nothing.
func homeConfig() (cfg Config) {
	home, err := homeDir()
	if err != nil {
		return
	}
	path := filepath.Join(home, homeConfigDir, homeConfigFile)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return
	}
	cfg, err = parseConfigFile(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to parse %s\n", path)
		log.WithError(err).WithField("path", path).Error("home config ignored")
		return Config{}
	}
	return
}

func parseConfigFile(data string) (cfg Config, err error) {
	for lineNo, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return Config{}, fmt.Errorf("line %d: no key=value separator", lineNo+1)
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		switch key {
		case "account-id":
			cfg.AccountID = value
		case "access-key":
			cfg.AccessKey = value
		case "secret":
			cfg.Secret = value
		case "endpoint":
			cfg.Endpoint = value
		case "service":
			cfg.Service = value
		case "region":
			cfg.Region = value
		case "db-name":
			cfg.DBName = value
		case "timeout":
			ms, perr := strconv.ParseInt(value, 10, 64)
			if perr != nil || ms <= 0 {
				return Config{}, fmt.Errorf("line %d: bad timeout %q", lineNo+1, value)
			}
			cfg.Timeout = time.Duration(ms) * time.Millisecond
		default:
			// unknown keys pass silently for forward compatibility
		}
	}
	return
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

var endpointPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(?::([0-9]+))?$`)

// ParseEndpoint accepts host or host:port, defaulting to https on 443.
// An empty endpoint yields a zero value for Validate to catch; anything
// malformed is an incorrect anomaly.
func ParseEndpoint(s string) (ep transport.Endpoint, anom *anomaly.Anomaly) {
	if s == "" {
		return
	}
	m := endpointPattern.FindStringSubmatch(s)
	if m == nil {
		return ep, anomaly.Newf(anomaly.Incorrect, "Invalid endpoint: %s", s)
	}
	ep = transport.Endpoint{Scheme: "https", Host: m[1], Port: 443}
	if m[2] != "" {
		port, err := strconv.Atoi(m[2])
		if err != nil || port <= 0 || port > 65535 {
			return transport.Endpoint{}, anomaly.Newf(anomaly.Incorrect, "Invalid endpoint: %s", s)
		}
		ep.Port = port
	}
	return
}
