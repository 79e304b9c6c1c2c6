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

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
)

// GrantPermission authorizes the caller against uid (W), then delegates
// the grant itself to C7. Grant is idempotent.
func (e *Engine) GrantPermission(ctx context.Context, tenantName, uid, principal, kind string, mask uint8, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.ACL.Grant(ctx, uid, principal, kind, mask)
}

// RevokePermission authorizes the caller against uid (W), then
// delegates the revoke itself to C7.
func (e *Engine) RevokePermission(ctx context.Context, tenantName, uid, principal, kind string, mask uint8, user string, roles []string) error {
	tc, err := e.ctxFor(tenantName)
	if err != nil {
		return err
	}
	if err := e.authorize(ctx, tc, uid, user, roles, metadata.PermWrite); err != nil {
		return err
	}
	return tc.ACL.Revoke(ctx, uid, principal, kind, mask)
}
