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

package fsengine

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/config"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/log"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/tenant"
)

const testKeyHex = "0102030405060708090a0b0c0d0e0f100102030405060708090a0b0c0d0e0f10"

func newTestEngine(t *testing.T, cfgMod func(*config.TenantConfig)) (*Engine, string) {
	t.Helper()
	cfg := config.TenantConfig{
		Tenant:             "acme",
		DBDriver:           "sqlite3",
		LocalBasePath:      t.TempDir(),
		CacheCapacityBytes: 1 << 20,
		CacheThreshold:     0.8,
	}
	if cfgMod != nil {
		cfgMod(&cfg)
	}
	mgr := tenant.NewManager(log.Nop())
	tc, err := mgr.InitializeTenant(context.Background(), cfg)
	require.NoError(t, err)
	e := New(mgr)
	// The tenant root's ACL only names the "root" user; let alice work
	// directly under it.
	require.NoError(t, e.GrantPermission(context.Background(), "acme", tc.RootUID, "alice", "user", metadata.PermRead|metadata.PermWrite, "root", nil))
	return e, tc.RootUID
}

func TestScenario_CreateReadRoundTrip(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	u1, err := e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.NoError(t, err)

	u2, err := e.Touch(ctx, "acme", u1, "r.txt", "alice", nil)
	require.NoError(t, err)

	_, err = e.Put(ctx, "acme", u2, []byte("hello"), "alice", nil)
	require.NoError(t, err)

	got, err := e.Get(ctx, "acme", u2, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	info, err := e.Stat(ctx, "acme", u2, "alice", nil)
	require.NoError(t, err)
	require.EqualValues(t, 5, info.SizeBytes)
}

func TestScenario_Versioning(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	u1, err := e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.NoError(t, err)
	u2, err := e.Touch(ctx, "acme", u1, "r.txt", "alice", nil)
	require.NoError(t, err)

	ts1, err := e.Put(ctx, "acme", u2, []byte("hello"), "alice", nil)
	require.NoError(t, err)
	ts2, err := e.Put(ctx, "acme", u2, []byte("world"), "alice", nil)
	require.NoError(t, err)
	require.Less(t, ts1, ts2)

	versions, err := e.ListVersions(ctx, "acme", u2, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, []string{ts2, ts1}, versions)

	got, err := e.GetVersion(ctx, "acme", u2, ts1, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	require.NoError(t, e.RestoreToVersion(ctx, "acme", u2, ts1, "alice", nil))
	got, err = e.Get(ctx, "acme", u2, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestScenario_ACL(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	u1, err := e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.NoError(t, err)
	u2, err := e.Touch(ctx, "acme", u1, "r.txt", "alice", nil)
	require.NoError(t, err)
	_, err = e.Put(ctx, "acme", u2, []byte("hello"), "alice", nil)
	require.NoError(t, err)

	require.NoError(t, e.GrantPermission(ctx, "acme", u2, "bob", "user", metadata.PermRead, "alice", nil))
	got, err := e.Get(ctx, "acme", u2, "bob", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	require.NoError(t, e.RevokePermission(ctx, "acme", u2, "bob", "user", metadata.PermRead, "alice", nil))
	_, err = e.Get(ctx, "acme", u2, "bob", nil)
	require.Error(t, err)
	_, ok := err.(errtypes.PermissionDenied)
	require.True(t, ok)
}

func TestScenario_Purge(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	u1, err := e.Touch(ctx, "acme", root, "r.txt", "alice", nil)
	require.NoError(t, err)

	var lastTS string
	for i := 0; i < 10; i++ {
		ts, err := e.Put(ctx, "acme", u1, []byte(strings.Repeat("x", i+1)), "alice", nil)
		require.NoError(t, err)
		lastTS = ts
	}

	require.NoError(t, e.PurgeOldVersions(ctx, "acme", u1, "alice", nil, 3))
	versions, err := e.ListVersions(ctx, "acme", u1, "alice", nil)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	require.Contains(t, versions, lastTS)
}

func TestRmdir_SucceedsWithOnlyTombstonedChild(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	dir, err := e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.NoError(t, err)
	child, err := e.Touch(ctx, "acme", dir, "a.txt", "alice", nil)
	require.NoError(t, err)
	require.NoError(t, e.Remove(ctx, "acme", child, "alice", nil))

	require.NoError(t, e.Rmdir(ctx, "acme", dir, "alice", nil))
}

func TestRmdir_RefusesNonEmptyDirectory(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	dir, err := e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.NoError(t, err)
	_, err = e.Touch(ctx, "acme", dir, "a.txt", "alice", nil)
	require.NoError(t, err)

	err = e.Rmdir(ctx, "acme", dir, "alice", nil)
	require.Error(t, err)
	_, ok := err.(errtypes.Conflict)
	require.True(t, ok)
}

func TestPut_OnTombstonedEntry_FailsWithNotFound(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	u1, err := e.Touch(ctx, "acme", root, "a.txt", "alice", nil)
	require.NoError(t, err)
	require.NoError(t, e.Remove(ctx, "acme", u1, "alice", nil))

	_, err = e.Put(ctx, "acme", u1, []byte("x"), "alice", nil)
	require.Error(t, err)
	_, ok := err.(errtypes.NotFound)
	require.True(t, ok)
}

func TestMkdir_DuplicateNameFailsSecond(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.NoError(t, err)
	_, err = e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.Error(t, err)
	_, ok := err.(errtypes.AlreadyExists)
	require.True(t, ok)
}

func TestRemoveThenListdirThenUndelete(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	u1, err := e.Touch(ctx, "acme", root, "a.txt", "alice", nil)
	require.NoError(t, err)

	require.NoError(t, e.Remove(ctx, "acme", u1, "alice", nil))
	visible, err := e.Listdir(ctx, "acme", root, "alice", nil, false, 0, 0)
	require.NoError(t, err)
	require.Empty(t, visible)

	withDeleted, err := e.Listdir(ctx, "acme", root, "alice", nil, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, withDeleted, 1)

	require.NoError(t, e.Undelete(ctx, "acme", u1, "alice", nil))
	visible, err = e.Listdir(ctx, "acme", root, "alice", nil, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
}

func TestPut_RoundTripsWithCompressionAndEncryption(t *testing.T) {
	e, root := newTestEngine(t, func(c *config.TenantConfig) {
		c.CompressData = true
		c.EncryptData = true
		c.KeyMaterial = testKeyHex[:64]
	})
	ctx := context.Background()

	u1, err := e.Touch(ctx, "acme", root, "a.txt", "alice", nil)
	require.NoError(t, err)
	payload := []byte(strings.Repeat("payload-bytes-", 64))
	_, err = e.Put(ctx, "acme", u1, payload, "alice", nil)
	require.NoError(t, err)

	got, err := e.Get(ctx, "acme", u1, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestCopy_SharesStoragePathWithoutDuplicatingBytes(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()

	dir, err := e.Mkdir(ctx, "acme", root, "docs", "alice", nil, 0o750)
	require.NoError(t, err)
	src, err := e.Touch(ctx, "acme", dir, "a.txt", "alice", nil)
	require.NoError(t, err)
	_, err = e.Put(ctx, "acme", src, []byte("copy me"), "alice", nil)
	require.NoError(t, err)

	dst, err := e.Copy(ctx, "acme", src, dir, "b.txt", "alice", nil)
	require.NoError(t, err)

	got, err := e.Get(ctx, "acme", dst, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, "copy me", string(got))
}

func TestSetMetadata_RejectsSysPrefix(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()
	u1, err := e.Touch(ctx, "acme", root, "a.txt", "alice", nil)
	require.NoError(t, err)

	err = e.SetMetadata(ctx, "acme", u1, metadata.CurrentRef(), "sys.checksum", "x", "alice", nil)
	require.Error(t, err)
	_, ok := err.(errtypes.InvalidArgument)
	require.True(t, ok)
}

func TestPut_WritesSysChecksumMetadata(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()
	u1, err := e.Touch(ctx, "acme", root, "a.txt", "alice", nil)
	require.NoError(t, err)
	ts, err := e.Put(ctx, "acme", u1, []byte("hello"), "alice", nil)
	require.NoError(t, err)

	all, err := e.GetAllMetadata(ctx, "acme", u1, metadata.AtRef(ts), "alice", nil)
	require.NoError(t, err)
	sum, ok := all[checksumKey]
	require.True(t, ok)
	_, err = hex.DecodeString(sum)
	require.NoError(t, err)
}

func TestPut_QuotaExceeded(t *testing.T) {
	e, root := newTestEngine(t, func(c *config.TenantConfig) {
		c.QuotaBytes = 10
	})
	ctx := context.Background()
	u1, err := e.Touch(ctx, "acme", root, "a.txt", "alice", nil)
	require.NoError(t, err)

	_, err = e.Put(ctx, "acme", u1, []byte("12345"), "alice", nil)
	require.NoError(t, err)

	_, err = e.Put(ctx, "acme", u1, []byte(strings.Repeat("x", 20)), "alice", nil)
	require.Error(t, err)
	_, ok := err.(errtypes.Conflict)
	require.True(t, ok)
}

func TestCreateSymlink_NotSupported(t *testing.T) {
	e, root := newTestEngine(t, nil)
	ctx := context.Background()
	_, err := e.CreateSymlink(ctx, "acme", root, "link", "target", "alice", nil)
	require.Error(t, err)
	_, ok := err.(errtypes.NotSupported)
	require.True(t, ok)
}
