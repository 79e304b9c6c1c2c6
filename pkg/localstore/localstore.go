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

// Package localstore implements C3: content-addressed blob storage on a
// local filesystem, desaturated by the first three hex-pairs of the uid
// to bound per-directory fan-out.
package localstore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/codec"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/log"
)

const dirPerm = 0o750
const filePerm = 0o640

// Store is a leaf component: it knows nothing about tenants beyond the
// path segment it is given, and nothing about the object store.
type Store struct {
	basePath string
	codec    *codec.Codec
	log      *log.Logger

	// mu serializes store_blob/delete_blob so directory creation and
	// file-rename atomicity do not race. Reads proceed in parallel.
	mu sync.Mutex
}

// New constructs a local store rooted at basePath, applying codec to
// every blob written/read.
func New(basePath string, c *codec.Codec, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{basePath: basePath, codec: c, log: logger}
}

// PathFor is a pure function of (tenant, uid, version_ts) returning the
// desaturated on-disk path, without touching the filesystem. tenant=""
// selects the system-internal "no tenant" mode used by tests.
func (s *Store) PathFor(tenant, uid, versionTS string) string {
	stripped := strings.ReplaceAll(uid, "-", "")
	aa, bb, cc := "00", "00", "00"
	if len(stripped) >= 6 {
		aa, bb, cc = stripped[0:2], stripped[2:4], stripped[4:6]
	}
	parts := []string{s.basePath}
	if tenant != "" {
		parts = append(parts, tenant)
	}
	parts = append(parts, aa, bb, cc, uid, versionTS)
	return filepath.Join(parts...)
}

// StoreBlob writes data (after codec transforms) to the path derived
// from (tenant, uid, versionTS), atomically: write to a sibling .tmp
// file, fsync, rename. It returns the final storage path.
func (s *Store) StoreBlob(tenant, uid, versionTS string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.PathFor(tenant, uid, versionTS)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", errtypes.StorageUnavailable(errors.Wrap(err, "mkdir").Error())
	}

	payload := data
	if s.codec != nil {
		encoded, err := s.codec.Encode(data)
		if err != nil {
			return "", err
		}
		payload = encoded
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return "", errtypes.StorageUnavailable(errors.Wrap(err, "open tmp").Error())
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", errtypes.StorageUnavailable(errors.Wrap(err, "write tmp").Error())
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", errtypes.StorageUnavailable(errors.Wrap(err, "fsync tmp").Error())
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", errtypes.StorageUnavailable(errors.Wrap(err, "close tmp").Error())
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errtypes.StorageUnavailable(errors.Wrap(err, "rename").Error())
	}
	return path, nil
}

// ReadBlob reads the file at storagePath and reverses codec transforms.
// Reading from an absent path returns a NotFound error.
func (s *Store) ReadBlob(storagePath string) ([]byte, error) {
	raw, err := os.ReadFile(storagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errtypes.NotFound(storagePath)
		}
		return nil, errtypes.StorageUnavailable(errors.Wrap(err, "read").Error())
	}
	if s.codec == nil {
		return raw, nil
	}
	return s.codec.Decode(raw)
}

// DeleteBlob removes the file at storagePath and removes the leaf
// directory (and only the leaf) if it becomes empty afterward.
func (s *Store) DeleteBlob(storagePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(storagePath); err != nil {
		if os.IsNotExist(err) {
			return errtypes.NotFound(storagePath)
		}
		return errtypes.StorageUnavailable(errors.Wrap(err, "remove").Error())
	}
	dir := filepath.Dir(storagePath)
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
	return nil
}

// CreateTenantDir ensures the tenant's root subtree exists.
func (s *Store) CreateTenantDir(tenant string) error {
	if tenant == "" {
		return errtypes.InvalidArgument("tenant must not be empty")
	}
	if err := os.MkdirAll(filepath.Join(s.basePath, tenant), dirPerm); err != nil {
		return errtypes.StorageUnavailable(errors.Wrap(err, "mkdir tenant").Error())
	}
	return nil
}

// TenantDirExists reports whether the tenant's root subtree exists.
func (s *Store) TenantDirExists(tenant string) bool {
	if tenant == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(s.basePath, tenant))
	return err == nil && info.IsDir()
}

// CleanupTenantDir recursively deletes everything under the tenant's
// root subtree. It refuses an empty tenant label.
func (s *Store) CleanupTenantDir(tenant string) error {
	if tenant == "" {
		return errtypes.InvalidArgument("cleanup_tenant_dir refuses an empty tenant label")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(s.basePath, tenant)); err != nil {
		return errtypes.StorageUnavailable(errors.Wrap(err, "cleanup tenant dir").Error())
	}
	s.log.Info("tenant local directory purged", "tenant", tenant)
	return nil
}
