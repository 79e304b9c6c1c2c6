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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
)

func TestParseFile_SkipsCommentsAndBlankLines(t *testing.T) {
	raw := "# a comment\n\nFILEENGINE_SERVER=localhost:9000\nFILEENGINE_DEFAULT_USER=\"alice\"\n"
	values, err := ParseFile(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", values[KeyServer])
	assert.Equal(t, "alice", values[KeyDefaultUser])
}

func TestParseFile_IgnoresLinesWithoutEquals(t *testing.T) {
	values, err := ParseFile(strings.NewReader("not_a_kv_line\nFOO=bar\n"))
	require.NoError(t, err)
	assert.Len(t, values, 1)
	assert.Equal(t, "bar", values["FOO"])
}

func TestLoadFile_MissingFileReturnsEmptyMap(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestLoadFile_ReadsWrittenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fileengine.conf")
	require.NoError(t, os.WriteFile(path, []byte("FILEENGINE_SERVER=example.org:9000\n"), 0o644))

	values, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "example.org:9000", values[KeyServer])
}

func TestApplyEnv_OverlaysOnTopOfFileValues(t *testing.T) {
	t.Setenv(KeyServer, "env-host:1234")
	values := map[string]string{KeyServer: "file-host:9000"}
	out := ApplyEnv(values, KeyServer, KeyDefaultUser)
	assert.Equal(t, "env-host:1234", out[KeyServer])
}

func TestDecodeTenantConfig_HappyPath(t *testing.T) {
	raw := map[string]any{
		"tenant":               "acme",
		"db_driver":            "sqlite3",
		"local_base_path":      "/var/lib/fileengine/acme",
		"quota_bytes":          "1048576",
		"cache_capacity_bytes": 67108864,
		"cache_threshold":      0.8,
	}
	cfg, err := DecodeTenantConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Tenant)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.EqualValues(t, 1048576, cfg.QuotaBytes)
	assert.InDelta(t, 0.8, cfg.CacheThreshold, 0.001)
}

func TestDecodeTenantConfig_RejectsMissingTenant(t *testing.T) {
	_, err := DecodeTenantConfig(map[string]any{"db_driver": "sqlite3"})
	require.Error(t, err)
	_, ok := err.(errtypes.InvalidArgument)
	assert.True(t, ok)
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("true"))
	assert.True(t, ParseBool("1"))
	assert.False(t, ParseBool("not-a-bool"))
}
