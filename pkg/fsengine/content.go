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
	"crypto/sha256"
	"encoding/hex"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/idgen"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/tenant"
)

// maxVersionRetries bounds how many times Put allocates a fresh
// version_ts and retries the C3 write after a failed attempt. When every
// attempt fails, Put returns the last write error, not a Conflict.
const maxVersionRetries = 5

// Put allocates a new version, writes the blob to C3, inserts the
// Version row, and then sets current_version and bumps modified_at.
// These are two separate metadata writes, not one transaction: if the
// second fails, the Version row stays but current_version is unchanged.
// Write-back to C4 is scheduled fire-and-forget. Requires W on uid.
func (e *Engine) Put(ctx context.Context, tenantName, uid string, data []byte, user string, roles []string) (string, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return "", err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return "", err
	}
	entry, err := tc.DB.GetEntry(ctx, uid)
	if err != nil {
		return "", err
	}
	if entry.Deleted {
		return "", errtypes.NotFound(uid)
	}
	if entry.Kind != metadata.KindRegular {
		return "", errtypes.InvalidArgument("put requires a regular file")
	}

	if err := e.checkQuota(ctx, tc, uid, int64(len(data))); err != nil {
		return "", err
	}

	var versionTS, storagePath string
	var lastErr error
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		versionTS = e.ids.NextVersion(uid)
		storagePath, lastErr = tc.Local.StoreBlob(tc.Tenant, uid, versionTS, data)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return "", lastErr
	}

	now := idgen.NowMillis()
	if err := tc.DB.InsertVersion(ctx, metadata.Version{
		UID: uid, VersionTS: versionTS, SizeBytes: int64(len(data)), StoragePath: storagePath, CreatedAt: now,
	}); err != nil {
		// Metadata commit failed after the blob was written: the blob is
		// now orphaned and will be reclaimed by a later purge. This is
		// the accepted trade-off from spec §4.9/§7.
		tc.Log.Error(err, "metadata insert failed after blob write, blob orphaned", "uid", uid, "version_ts", versionTS)
		return "", err
	}
	if err := tc.DB.SetCurrentVersion(ctx, uid, versionTS, now); err != nil {
		tc.Log.Error(err, "set current_version failed after version insert", "uid", uid, "version_ts", versionTS)
		return "", err
	}

	sum := sha256.Sum256(data)
	if err := tc.DB.SetMetadata(ctx, uid, metadata.AtRef(versionTS), checksumKey, hex.EncodeToString(sum[:])); err != nil {
		tc.Log.Error(err, "checksum metadata write failed", "uid", uid, "version_ts", versionTS)
	}

	tc.Cache.Add(storagePath, data)

	if tc.Object != nil {
		go e.writeBack(tc, uid, versionTS, data)
	}

	return versionTS, nil
}

func (e *Engine) writeBack(tc *tenant.Context, uid, versionTS string, data []byte) {
	if err := tc.Object.StoreBlob(context.Background(), tc.Tenant, uid, versionTS, data); err != nil {
		tc.Log.Error(err, "object store write-back failed", "uid", uid, "version_ts", versionTS)
	}
}

func (e *Engine) checkQuota(ctx context.Context, tc *tenant.Context, uid string, incoming int64) error {
	if tc.Config.QuotaBytes <= 0 {
		return nil
	}
	used, err := tc.DB.SumCurrentVersionSizes(ctx)
	if err != nil {
		return err
	}
	// The uid's own current version (if any) is being replaced, not
	// added to, so subtract it before comparing against the incoming size.
	if entry, err := tc.DB.GetEntry(ctx, uid); err == nil && entry.CurrentVersion != "" {
		if v, err := tc.DB.GetVersion(ctx, uid, entry.CurrentVersion); err == nil {
			used -= v.SizeBytes
		}
	}
	if used+incoming > tc.Config.QuotaBytes {
		return errtypes.Conflict("tenant quota exceeded")
	}
	return nil
}

// Get resolves uid's current version and returns its bytes, trying C5,
// then C3, then C4 with rehydration. Requires R on uid.
func (e *Engine) Get(ctx context.Context, tenantName, uid, user string, roles []string) ([]byte, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermRead); err != nil {
		return nil, err
	}
	entry, err := tc.DB.GetEntry(ctx, uid)
	if err != nil {
		return nil, err
	}
	if entry.Deleted {
		return nil, errtypes.NotFound(uid)
	}
	versionTS := entry.CurrentVersion
	if versionTS == "" {
		versions, err := tc.DB.ListVersionsDesc(ctx, uid)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, errtypes.NotFound("no content for " + uid)
		}
		versionTS = versions[0].VersionTS
	}
	return e.resolveContent(ctx, tc, uid, versionTS)
}

// GetVersion is Get with an explicit version_ts instead of the live
// current_version. Requires R on uid.
func (e *Engine) GetVersion(ctx context.Context, tenantName, uid, versionTS, user string, roles []string) ([]byte, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermRead); err != nil {
		return nil, err
	}
	return e.resolveContent(ctx, tc, uid, versionTS)
}

// resolveContent implements the six-step content read path from spec §4.9.
func (e *Engine) resolveContent(ctx context.Context, tc *tenant.Context, uid, versionTS string) ([]byte, error) {
	storagePath, err := tc.DB.GetVersionPath(ctx, uid, versionTS)
	if err != nil {
		return nil, err
	}

	if b, ok := tc.Cache.Get(storagePath); ok {
		return b, nil
	}

	b, err := tc.Local.ReadBlob(storagePath)
	if err == nil {
		tc.Cache.Add(storagePath, b)
		return b, nil
	}
	if _, isNotFound := err.(errtypes.NotFound); !isNotFound {
		return nil, err
	}

	if tc.Object == nil {
		return nil, errtypes.StorageUnavailable("blob missing locally and no object store configured")
	}

	// Rehydration: C4 holds the codec's plaintext input, never C3's
	// on-disk AEAD envelope, so the fetched bytes are written back
	// through the same store path a fresh put would use (decided in
	// SPEC_FULL.md's open-question resolution), not copied verbatim.
	remote, err := tc.Object.ReadBlob(ctx, tc.Tenant, uid, versionTS)
	if err != nil {
		return nil, err
	}
	if _, err := tc.Local.StoreBlob(tc.Tenant, uid, versionTS, remote); err != nil {
		tc.Log.Error(err, "rehydration write-through failed", "uid", uid, "version_ts", versionTS)
	}
	tc.Cache.Add(storagePath, remote)
	return remote, nil
}

// ListVersions returns version timestamps, newest first. Requires R on uid.
func (e *Engine) ListVersions(ctx context.Context, tenantName, uid, user string, roles []string) ([]string, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermRead); err != nil {
		return nil, err
	}
	versions, err := tc.DB.ListVersionsDesc(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.VersionTS
	}
	return out, nil
}

// RestoreToVersion points current_version at an existing version_ts, in
// one transaction. Requires W on uid.
func (e *Engine) RestoreToVersion(ctx context.Context, tenantName, uid, versionTS, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.DB.RestoreToVersion(ctx, uid, versionTS, idgen.NowMillis())
}

// PurgeOldVersions retains the most recent keepCount versions of uid,
// deleting older ones from both the metadata store and C3/C4. The
// current_version is never deleted even if it would otherwise be
// "older"; keepCount is effectively bumped by one to preserve it.
func (e *Engine) PurgeOldVersions(ctx context.Context, tenantName, uid, user string, roles []string, keepCount int) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	entry, err := tc.DB.GetEntry(ctx, uid)
	if err != nil {
		return err
	}
	versions, err := tc.DB.ListVersionsDesc(ctx, uid)
	if err != nil {
		return err
	}
	if keepCount < 0 {
		keepCount = 0
	}

	kept := 0
	for _, v := range versions {
		isCurrent := v.VersionTS == entry.CurrentVersion
		if kept < keepCount || isCurrent {
			kept++
			continue
		}
		if err := tc.Local.DeleteBlob(v.StoragePath); err != nil {
			if _, isNotFound := err.(errtypes.NotFound); !isNotFound {
				return err
			}
		}
		if tc.Object != nil {
			if err := tc.Object.DeleteBlob(ctx, tc.Tenant, uid, v.VersionTS); err != nil {
				tc.Log.Error(err, "object store purge failed", "uid", uid, "version_ts", v.VersionTS)
			}
		}
		if err := tc.DB.DeleteVersion(ctx, uid, v.VersionTS); err != nil {
			return err
		}
	}
	return nil
}
