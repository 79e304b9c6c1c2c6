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

// Package tenant implements C8: the tenant manager, the sole owner of
// each tenant's C3/C4/C6 handles. Contexts are never invalidated
// implicitly; once constructed, a reference returned by
// GetTenantContext remains valid for the process lifetime.
package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/acl"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/cache"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/codec"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/config"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/idgen"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/localstore"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/log"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/objectstore"
)

const (
	defaultCacheCapacity = 64 << 20 // 64 MiB
	defaultCacheThreshold = 0.8
)

// Context bundles one tenant's storage substrates. C9 is the only
// consumer; it never reaches into a sibling tenant's Context.
type Context struct {
	Tenant  string
	Config  config.TenantConfig
	DB      *metadata.Store
	Local   *localstore.Store
	Object  *objectstore.Store // nil when the tenant has no object-store tier configured
	Cache   *cache.Cache
	ACL     *acl.Engine
	RootUID string
	Log     *log.Logger
}

// Manager holds every tenant's Context, read-mostly after startup.
type Manager struct {
	mu       sync.RWMutex
	tenants  map[string]*Context
	log      *log.Logger
}

// NewManager constructs an empty Manager. logger is the process-wide
// sink every Context's child logger derives from; tests pass an
// in-memory/no-op Logger.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{tenants: make(map[string]*Context), log: logger}
}

func dataSourceName(cfg config.TenantConfig) (driver, dsn string) {
	driver = cfg.DBDriver
	if driver == "" {
		driver = "sqlite3"
	}
	switch driver {
	case "mysql":
		return driver, fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	default:
		path := filepath.Join(cfg.LocalBasePath, cfg.Tenant+"-meta.db")
		return "sqlite3", path
	}
}

// InitializeTenant is idempotent: it creates the metadata schema, the
// local tenant directory, and the remote bucket/prefix, in that order,
// then records the Context. Calling it again for an already-initialized
// tenant returns the recorded Context without touching the substrates.
func (m *Manager) InitializeTenant(ctx context.Context, cfg config.TenantConfig) (*Context, error) {
	if cfg.Tenant == "" {
		return nil, errtypes.InvalidArgument("tenant must not be empty")
	}

	m.mu.RLock()
	if existing, ok := m.tenants[cfg.Tenant]; ok {
		m.mu.RUnlock()
		return existing, nil
	}
	m.mu.RUnlock()

	tenantLog := m.log.With("tenant", cfg.Tenant)

	driver, dsn := dataSourceName(cfg)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errtypes.StorageUnavailable(err.Error())
	}
	store := metadata.Open(db, driver)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	var c *codec.Codec
	if cfg.EncryptData || cfg.CompressData {
		opts := codec.Options{Compress: cfg.CompressData, Encrypt: cfg.EncryptData}
		if cfg.EncryptData {
			key, err := codec.ParseKey(cfg.KeyMaterial)
			if err != nil {
				return nil, err
			}
			opts.Key = key
		}
		c, err = codec.New(opts)
		if err != nil {
			return nil, err
		}
	}
	local := localstore.New(cfg.LocalBasePath, c, tenantLog)
	if err := local.CreateTenantDir(cfg.Tenant); err != nil {
		return nil, err
	}

	var obj *objectstore.Store
	if cfg.ObjectEndpoint != "" {
		mode := objectstore.SharedBucket
		if cfg.PerTenantBucket {
			mode = objectstore.PerTenantBucket
		}
		obj, err = objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjectEndpoint,
			Region:    cfg.ObjectRegion,
			AccessKey: cfg.ObjectAccessKey,
			SecretKey: cfg.ObjectSecretKey,
			Bucket:    cfg.ObjectBucket,
			UseSSL:    cfg.ObjectUseSSL,
			PathStyle: cfg.ObjectPathStyle,
			Mode:      mode,
		})
		if err != nil {
			return nil, err
		}
		if err := obj.CreateTenantBucket(ctx, cfg.Tenant); err != nil {
			return nil, err
		}
	}

	capacity := cfg.CacheCapacityBytes
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	threshold := cfg.CacheThreshold
	if threshold == 0 {
		threshold = defaultCacheThreshold
	}

	rootUID := "root-" + cfg.Tenant
	tc := &Context{
		Tenant:  cfg.Tenant,
		Config:  cfg,
		DB:      store,
		Local:   local,
		Object:  obj,
		Cache:   cache.New(capacity, threshold),
		RootUID: rootUID,
		Log:     tenantLog,
	}
	tc.ACL = acl.New(store, func(uid string) bool { return uid == rootUID })

	if err := m.ensureRoot(ctx, tc); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tenants[cfg.Tenant] = tc
	m.mu.Unlock()

	tenantLog.Info("tenant initialized")
	return tc, nil
}

func (m *Manager) ensureRoot(ctx context.Context, tc *Context) error {
	_, err := tc.DB.GetEntry(ctx, tc.RootUID)
	if err == nil {
		return nil
	}
	if _, ok := err.(errtypes.NotFound); !ok {
		return err
	}
	now := idgen.NowMillis()
	root := metadata.Entry{
		UID:        tc.RootUID,
		Name:       "",
		ParentUID:  "",
		Kind:       metadata.KindDirectory,
		Owner:      "root",
		Mode:       0o750,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := tc.DB.InsertEntry(ctx, root); err != nil {
		if _, ok := err.(errtypes.AlreadyExists); ok {
			return nil
		}
		return err
	}
	return tc.ACL.ApplyDefaultAcls(ctx, tc.RootUID, "root", true)
}

// TenantExists returns true iff the tenant was initialized in this
// process's lifetime (the in-memory record is authoritative per spec
// §4.8's "never invalidates contexts implicitly").
func (m *Manager) TenantExists(tenantName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tenants[tenantName]
	return ok
}

// GetTenantContext returns the Context for tenantName, or NotFound if
// the tenant was never initialized.
func (m *Manager) GetTenantContext(tenantName string) (*Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tc, ok := m.tenants[tenantName]
	if !ok {
		return nil, errtypes.NotFound(tenantName)
	}
	return tc, nil
}
