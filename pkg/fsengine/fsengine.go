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

// Package fsengine implements C9: the filesystem core that orchestrates
// C6 (metadata), C3/C4/C5 (the three content tiers) under C7 (ACL) to
// implement the public, tenant-scoped operations.
package fsengine

import (
	"context"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/idgen"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/tenant"
)

// sysKeyPrefix reserves the "sys." metadata namespace for engine-internal
// use (e.g. sys.checksum). This convention is new in this module; see
// SPEC_FULL.md, supplemented feature 4.
const sysKeyPrefix = "sys."

// checksumKey is the sys.-namespaced integrity check written on every
// put, independent of AES-GCM's own tag, so a tenant with
// encrypt_data=false still gets an integrity signal.
const checksumKey = sysKeyPrefix + "checksum"

// Engine is the public entry point; one Engine serves every tenant
// through the tenant manager.
type Engine struct {
	tenants *tenant.Manager
	ids     *idgen.Service
}

// New constructs an Engine over an already-populated tenant manager.
func New(tenants *tenant.Manager) *Engine {
	return &Engine{tenants: tenants, ids: idgen.NewService()}
}

// EntryInfo is the Stat response: the raw Entry row plus derived fields
// that the original implementation left as zero-valued stubs
// (SPEC_FULL §"Supplemented features", item 1).
type EntryInfo struct {
	metadata.Entry
	VersionCount int
	SizeBytes    int64
}

func (e *Engine) ctxFor(tenantName string) (*tenant.Context, error) {
	return e.tenants.GetTenantContext(tenantName)
}

func (e *Engine) authorize(ctx context.Context, tc *tenant.Context, uid, user string, roles []string, mask uint8) error {
	ok, err := tc.ACL.Check(ctx, uid, user, roles, mask)
	if err != nil {
		return err
	}
	if !ok {
		return errtypes.PermissionDenied(uid)
	}
	return nil
}

// Mkdir creates a new directory Entry under parent and seeds its
// default ACLs. Requires W on parent.
func (e *Engine) Mkdir(ctx context.Context, tenantName, parent, name, user string, roles []string, mode uint16) (string, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", errtypes.InvalidArgument("name must not be empty")
	}
	if err := e.authorize(ctx, tc, parent, user, roles, metadata.PermWrite); err != nil {
		return "", err
	}
	uid := idgen.NewUID()
	now := idgen.NowMillis()
	entry := metadata.Entry{
		UID: uid, Name: name, ParentUID: parent, Kind: metadata.KindDirectory,
		Owner: user, Mode: mode, CreatedAt: now, ModifiedAt: now,
	}
	if err := tc.DB.InsertEntry(ctx, entry); err != nil {
		return "", err
	}
	if err := tc.ACL.ApplyDefaultAcls(ctx, uid, user, true); err != nil {
		return "", err
	}
	return uid, nil
}

// Rmdir soft-deletes uid. Refuses if non-deleted children exist.
// Requires W on uid.
func (e *Engine) Rmdir(ctx context.Context, tenantName, uid, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	count, err := tc.DB.CountNonDeletedChildren(ctx, uid)
	if err != nil {
		return err
	}
	if count > 0 {
		return errtypes.Conflict("directory is not empty")
	}
	return tc.DB.MarkDeleted(ctx, uid, idgen.NowMillis())
}

// Listdir returns uid's children in deterministic order. Requires R on uid.
func (e *Engine) Listdir(ctx context.Context, tenantName, uid, user string, roles []string, withDeleted bool, limit, offset int) ([]metadata.Entry, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermRead); err != nil {
		return nil, err
	}
	if withDeleted {
		return tc.DB.ListChildrenIncludingDeleted(ctx, uid, limit, offset)
	}
	return tc.DB.ListChildren(ctx, uid, limit, offset)
}

// Touch creates a new regular Entry with no content yet. Requires W on parent.
func (e *Engine) Touch(ctx context.Context, tenantName, parent, name, user string, roles []string) (string, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", errtypes.InvalidArgument("name must not be empty")
	}
	if err := e.authorize(ctx, tc, parent, user, roles, metadata.PermWrite); err != nil {
		return "", err
	}
	uid := idgen.NewUID()
	now := idgen.NowMillis()
	entry := metadata.Entry{
		UID: uid, Name: name, ParentUID: parent, Kind: metadata.KindRegular,
		Owner: user, Mode: 0o640, CreatedAt: now, ModifiedAt: now,
	}
	if err := tc.DB.InsertEntry(ctx, entry); err != nil {
		return "", err
	}
	if err := tc.ACL.ApplyDefaultAcls(ctx, uid, user, false); err != nil {
		return "", err
	}
	return uid, nil
}

// Remove soft-deletes uid. Requires W on uid.
func (e *Engine) Remove(ctx context.Context, tenantName, uid, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.DB.MarkDeleted(ctx, uid, idgen.NowMillis())
}

// Undelete clears uid's tombstone. Requires W on uid.
func (e *Engine) Undelete(ctx context.Context, tenantName, uid, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.DB.MarkUndeleted(ctx, uid, idgen.NowMillis())
}

// Stat returns an EntryInfo snapshot. Requires R on uid.
func (e *Engine) Stat(ctx context.Context, tenantName, uid, user string, roles []string) (EntryInfo, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return EntryInfo{}, err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermRead); err != nil {
		return EntryInfo{}, err
	}
	entry, err := tc.DB.GetEntry(ctx, uid)
	if err != nil {
		return EntryInfo{}, err
	}
	versions, err := tc.DB.ListVersionsDesc(ctx, uid)
	if err != nil {
		return EntryInfo{}, err
	}
	info := EntryInfo{Entry: entry, VersionCount: len(versions)}
	if entry.CurrentVersion != "" {
		for _, v := range versions {
			if v.VersionTS == entry.CurrentVersion {
				info.SizeBytes = v.SizeBytes
				break
			}
		}
	}
	return info, nil
}

// Rename updates uid's name, checking uniqueness within its current
// parent. Requires W on uid.
func (e *Engine) Rename(ctx context.Context, tenantName, uid, newName, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if newName == "" {
		return errtypes.InvalidArgument("name must not be empty")
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.DB.UpdateEntryName(ctx, uid, newName, idgen.NowMillis())
}

// Move reparents uid under newParent as newName. Requires W on uid and
// W on newParent (open question, decided in SPEC_FULL.md).
func (e *Engine) Move(ctx context.Context, tenantName, uid, newParent, newName, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if newName == "" {
		return errtypes.InvalidArgument("name must not be empty")
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, newParent, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.DB.MoveEntry(ctx, uid, newParent, newName, idgen.NowMillis())
}

// Copy creates a new Entry under newParent whose current version points
// at the same immutable storage_path as uid's current version — copy
// never duplicates content bytes, only the metadata edge (decided in
// SPEC_FULL.md). Requires W on uid and W on newParent.
func (e *Engine) Copy(ctx context.Context, tenantName, uid, newParent, newName, user string, roles []string) (string, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return "", err
	}
	if newName == "" {
		return "", errtypes.InvalidArgument("name must not be empty")
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return "", err
	}
	if err := e.authorize(ctx, tc, newParent, user, roles, metadata.PermWrite); err != nil {
		return "", err
	}
	src, err := tc.DB.GetEntry(ctx, uid)
	if err != nil {
		return "", err
	}
	if src.Deleted {
		return "", errtypes.NotFound(uid)
	}
	newUID := idgen.NewUID()
	now := idgen.NowMillis()
	dst := metadata.Entry{
		UID: newUID, Name: newName, ParentUID: newParent, Kind: src.Kind,
		Owner: user, Mode: src.Mode, CreatedAt: now, ModifiedAt: now,
	}
	if err := tc.DB.InsertEntry(ctx, dst); err != nil {
		return "", err
	}
	if err := tc.ACL.ApplyDefaultAcls(ctx, newUID, user, src.Kind == metadata.KindDirectory); err != nil {
		return "", err
	}
	if src.CurrentVersion != "" {
		srcVersion, err := tc.DB.GetVersion(ctx, uid, src.CurrentVersion)
		if err != nil {
			return "", err
		}
		newVersionTS := e.ids.NextVersion(newUID)
		if err := tc.DB.InsertVersion(ctx, metadata.Version{
			UID: newUID, VersionTS: newVersionTS, SizeBytes: srcVersion.SizeBytes,
			StoragePath: srcVersion.StoragePath, CreatedAt: now,
		}); err != nil {
			return "", err
		}
		if err := tc.DB.SetCurrentVersion(ctx, newUID, newVersionTS, now); err != nil {
			return "", err
		}
	}
	return newUID, nil
}

// CreateSymlink is stubbed: the kind is modeled in the data model but no
// operation manipulates symlink targets (SPEC_FULL.md, supplemented
// feature 5).
func (e *Engine) CreateSymlink(ctx context.Context, tenantName, parent, name, target, user string, roles []string) (string, error) {
	return "", errtypes.NotSupported("symlinks are not implemented")
}

// ReadSymlink is stubbed for the same reason as CreateSymlink.
func (e *Engine) ReadSymlink(ctx context.Context, tenantName, uid, user string, roles []string) (string, error) {
	return "", errtypes.NotSupported("symlinks are not implemented")
}
