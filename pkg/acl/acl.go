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

// Package acl implements C7: the ACL evaluation algorithm. Grants are
// additive, there are no explicit denies, and a uid with no ACL rows at
// all falls through to the owner/mode check seeded at creation time.
//
// ACL row lookups are fronted by a read-through cache built on
// github.com/bluele/gcache (count-bounded, not byte-bounded — unlike
// the C5 cache manager this has no strict eviction-order invariant to
// honor, so a ready-made cache library is the right fit here).
package acl

import (
	"context"
	"time"

	"github.com/bluele/gcache"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
)

const rowCacheSize = 4096
const rowCacheTTL = 30 * time.Second

// RootUser is the principal allowed unconditionally on a tenant root.
const RootUser = "root"

// Engine evaluates (user, roles) against a uid's ACL rows plus the
// owner/mode fallback.
type Engine struct {
	store     *metadata.Store
	rowCache  gcache.Cache
	isRootUID func(uid string) bool
}

// New builds an Engine over store. isRootUID reports whether a given
// uid names a tenant root (step 1 of the check algorithm).
func New(store *metadata.Store, isRootUID func(uid string) bool) *Engine {
	return &Engine{
		store:     store,
		rowCache:  gcache.New(rowCacheSize).LRU().Expiration(rowCacheTTL).Build(),
		isRootUID: isRootUID,
	}
}

func (e *Engine) rowsFor(ctx context.Context, uid string) ([]metadata.AclRow, error) {
	if v, err := e.rowCache.Get(uid); err == nil {
		return v.([]metadata.AclRow), nil
	}
	rows, err := e.store.ListAclForUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	_ = e.rowCache.Set(uid, rows)
	return rows, nil
}

func (e *Engine) invalidate(uid string) {
	e.rowCache.Remove(uid)
}

// Check implements the four-step algorithm from spec §4.7.
func (e *Engine) Check(ctx context.Context, uid, user string, roles []string, requiredMask uint8) (bool, error) {
	if e.isRootUID != nil && e.isRootUID(uid) && user == RootUser {
		return true, nil
	}

	rows, err := e.rowsFor(ctx, uid)
	if err != nil {
		return false, err
	}

	if len(rows) > 0 {
		var or uint8
		roleSet := make(map[string]bool, len(roles))
		for _, r := range roles {
			roleSet[r] = true
		}
		for _, row := range rows {
			switch row.PrincipalKind {
			case "user":
				if row.Principal == user {
					or |= row.PermMask
				}
			case "role":
				if roleSet[row.Principal] {
					or |= row.PermMask
				}
			}
		}
		return or&requiredMask == requiredMask, nil
	}

	// No rows at all: fall through to the owner/mode check.
	entry, err := e.store.GetEntry(ctx, uid)
	if err != nil {
		return false, err
	}
	var or uint8
	if entry.Owner == user {
		or |= metadata.PermRead | metadata.PermWrite
	}
	// mode's "others" bits (low 3 bits) grant read only, as an
	// additional ACL source, never write/execute.
	if entry.Mode&0o4 != 0 {
		or |= metadata.PermRead
	}
	return or&requiredMask == requiredMask, nil
}

// ApplyDefaultAcls seeds a freshly created Entry's ACL rows: the owner
// gets read|write, and directories additionally get execute (needed to
// traverse into them).
func (e *Engine) ApplyDefaultAcls(ctx context.Context, uid, owner string, isDir bool) error {
	if err := e.store.InsertAcl(ctx, metadata.AclRow{
		UID: uid, Principal: owner, PrincipalKind: "user",
		PermMask: metadata.PermRead | metadata.PermWrite,
	}); err != nil {
		return err
	}
	if isDir {
		if err := e.store.InsertAcl(ctx, metadata.AclRow{
			UID: uid, Principal: owner, PrincipalKind: "user",
			PermMask: metadata.PermExecute,
		}); err != nil {
			return err
		}
	}
	e.invalidate(uid)
	return nil
}

// Grant is idempotent: it ORs mask into any existing row. Callers (C9)
// are responsible for authorizing the caller before invoking this;
// Grant itself does not consult the target Entry.
func (e *Engine) Grant(ctx context.Context, uid, principal, kind string, mask uint8) error {
	if kind != "user" && kind != "role" {
		return errtypes.InvalidArgument("principal_kind must be user or role")
	}
	if err := e.store.InsertAcl(ctx, metadata.AclRow{UID: uid, Principal: principal, PrincipalKind: kind, PermMask: mask}); err != nil {
		return err
	}
	e.invalidate(uid)
	return nil
}

// Revoke clears bits from an existing row, deleting the row outright
// once the mask becomes zero.
func (e *Engine) Revoke(ctx context.Context, uid, principal, kind string, mask uint8) error {
	if err := e.store.DeleteAcl(ctx, uid, principal, kind, mask); err != nil {
		return err
	}
	e.invalidate(uid)
	return nil
}
