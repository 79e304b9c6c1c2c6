// Copyright 2024 Rational Boxes
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the client-facing KEY=VALUE configuration file
// described in spec.md §6 and decodes the core-owned TenantConfig from a
// generic map. The file format is intentionally hand-parsed: it is not
// the teacher project's TOML dialect, it is the small line-oriented
// format this spec pins exactly (see DESIGN.md).
package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
)

// Well-known CLI config keys.
const (
	KeyServer      = "FILEENGINE_SERVER"
	KeyDefaultUser = "FILEENGINE_DEFAULT_USER"
)

// ParseFile reads the `# comment`, `KEY=VALUE` format from r. Values may
// optionally be double-quoted; blank lines and comment lines are
// skipped.
func ParseFile(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errtypes.Internal(err.Error())
	}
	return out, nil
}

// LoadFile opens path and parses it with ParseFile. A missing file
// yields an empty map rather than an error, since every recognized key
// has a sensible zero value.
func LoadFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errtypes.Internal(err.Error())
	}
	defer f.Close()
	return ParseFile(f)
}

// ApplyEnv overlays process environment variables of the same key
// names on top of values already loaded from a file.
func ApplyEnv(values map[string]string, keys ...string) map[string]string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			values[k] = v
		}
	}
	return values
}

// TenantConfig is the immutable record of storage roots, credentials,
// and codec flags for one tenant, per spec §3/§6.
type TenantConfig struct {
	Tenant string `mapstructure:"tenant"`

	DBDriver   string `mapstructure:"db_driver"` // "sqlite3" or "mysql"
	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port"`
	DBName     string `mapstructure:"db_name"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`

	LocalBasePath string `mapstructure:"local_base_path"`

	ObjectEndpoint  string `mapstructure:"object_endpoint"`
	ObjectRegion    string `mapstructure:"object_region"`
	ObjectBucket    string `mapstructure:"object_bucket"`
	ObjectAccessKey string `mapstructure:"object_access_key"`
	ObjectSecretKey string `mapstructure:"object_secret_key"`
	ObjectPathStyle bool   `mapstructure:"object_path_style"`
	ObjectUseSSL    bool   `mapstructure:"object_use_ssl"`
	PerTenantBucket bool   `mapstructure:"per_tenant_bucket"`

	EncryptData  bool   `mapstructure:"encrypt_data"`
	CompressData bool   `mapstructure:"compress_data"`
	KeyMaterial  string `mapstructure:"key_material"` // 64-char hex or base64

	// QuotaBytes bounds the sum of current-version sizes for the
	// tenant; 0 means unlimited. An addition with no counterpart in
	// original_source/ (see SPEC_FULL.md).
	QuotaBytes int64 `mapstructure:"quota_bytes"`

	CacheCapacityBytes int64   `mapstructure:"cache_capacity_bytes"`
	CacheThreshold     float64 `mapstructure:"cache_threshold"`
}

// DecodeTenantConfig decodes a generic map (as read from a
// provisioning call or a config section) into a TenantConfig.
func DecodeTenantConfig(raw map[string]any) (TenantConfig, error) {
	var cfg TenantConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return TenantConfig{}, errtypes.Internal(err.Error())
	}
	if err := dec.Decode(raw); err != nil {
		return TenantConfig{}, errtypes.InvalidArgument(err.Error())
	}
	if cfg.Tenant == "" {
		return TenantConfig{}, errtypes.InvalidArgument("tenant must not be empty")
	}
	return cfg, nil
}

// ParseBool is a small helper for CLI flag-style "1"/"true" values
// pulled out of the KEY=VALUE config map. It accepts what
// strconv.ParseBool accepts; anything else, including "yes", is false.
func ParseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
