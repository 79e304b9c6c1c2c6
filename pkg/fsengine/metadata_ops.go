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
	"strings"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/idgen"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
)

// SetMetadata binds a value to (uid, ref, key). ref is either
// metadata.CurrentRef (entry-bound metadata) or metadata.AtRef for an
// explicit version; there is no default. Public callers may never target the
// sys.-namespaced keys reserved for engine-internal metadata. Requires
// W on uid.
func (e *Engine) SetMetadata(ctx context.Context, tenantName, uid string, ref metadata.VersionRef, key, value, user string, roles []string) error {
	if strings.HasPrefix(key, sysKeyPrefix) {
		return errtypes.InvalidArgument("keys prefixed \"sys.\" are reserved")
	}
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	if err := tc.DB.SetMetadata(ctx, uid, ref, key, value); err != nil {
		return err
	}
	if ref.Current {
		return tc.DB.TouchEntry(ctx, uid, idgen.NowMillis())
	}
	return nil
}

// GetMetadata reads a single metadata value. Requires R on uid.
func (e *Engine) GetMetadata(ctx context.Context, tenantName, uid string, ref metadata.VersionRef, key, user string, roles []string) (string, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return "", err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermRead); err != nil {
		return "", err
	}
	return tc.DB.GetMetadata(ctx, uid, ref, key)
}

// GetAllMetadata reads every metadata pair bound to (uid, ref). Requires
// R on uid.
func (e *Engine) GetAllMetadata(ctx context.Context, tenantName, uid string, ref metadata.VersionRef, user string, roles []string) (map[string]string, error) {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermRead); err != nil {
		return nil, err
	}
	return tc.DB.GetAllMetadata(ctx, uid, ref)
}

// DeleteMetadata removes a single metadata pair. Requires W on uid.
func (e *Engine) DeleteMetadata(ctx context.Context, tenantName, uid string, ref metadata.VersionRef, key, user string, roles []string) error {
	if strings.HasPrefix(key, sysKeyPrefix) {
		return errtypes.InvalidArgument("keys prefixed \"sys.\" are reserved")
	}
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.DB.DeleteMetadata(ctx, uid, ref, key)
}
