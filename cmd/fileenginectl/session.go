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

package main

import (
	"context"
	"strings"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/config"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/fsengine"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/log"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/tenant"
)

// session is the process-wide state the interactive commands share: one
// Engine over one tenant manager, plus the caller identity every command
// is authorized as. There is no bearer token to parse here, since the
// RPC transport carrying pkg/authtoken is out of scope for this binary;
// identity comes straight from -user/-roles.
type session struct {
	mgr    *tenant.Manager
	engine *fsengine.Engine
	tenant string
	user   string
	roles  []string
}

func newSession(logger *log.Logger, tenantName, user, roles string) *session {
	mgr := tenant.NewManager(logger)
	var roleList []string
	if roles != "" {
		roleList = strings.Split(roles, ",")
	}
	return &session{
		mgr:    mgr,
		engine: fsengine.New(mgr),
		tenant: tenantName,
		user:   user,
		roles:  roleList,
	}
}

// ensureInitialized provisions the tenant's storage substrates on first
// use; InitializeTenant is idempotent so repeat calls are cheap no-ops.
func (s *session) ensureInitialized(ctx context.Context, cfg config.TenantConfig) error {
	_, err := s.mgr.InitializeTenant(ctx, cfg)
	return err
}
