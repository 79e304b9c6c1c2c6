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

// Package objectstore implements C4: remote blob storage mirroring the
// key space of C3, backed by any S3-compatible bucket via minio-go.
// Encryption is assumed to be transport- or server-side; this package
// never applies the codec.
package objectstore

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
)

// Mode selects whether tenants share one bucket (isolated by a
// "<tenant>/" key prefix) or each get a dedicated bucket.
type Mode int

const (
	// SharedBucket puts every tenant's objects under "<tenant>/" in one bucket.
	SharedBucket Mode = iota
	// PerTenantBucket gives each tenant its own bucket, named after the tenant.
	PerTenantBucket
)

// Config describes how to reach the remote object store.
type Config struct {
	Endpoint        string
	Region          string
	AccessKey       string
	SecretKey       string
	Bucket          string // shared bucket name when Mode == SharedBucket
	UseSSL          bool
	PathStyle       bool
	Mode            Mode
}

// Store is the object-store collaborator.
type Store struct {
	client *minio.Client
	cfg    Config
}

// New constructs a Store from Config.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errtypes.InvalidArgument(errors.Wrap(err, "object store client init").Error())
	}
	return &Store{client: client, cfg: cfg}, nil
}

func (s *Store) bucketAndKey(tenant, uid, versionTS string) (string, string) {
	key := uid + "/" + versionTS
	if s.cfg.Mode == PerTenantBucket {
		return tenant, key
	}
	return s.cfg.Bucket, tenant + "/" + key
}

// StoreBlob uploads data under the key derived from (tenant, uid, versionTS).
func (s *Store) StoreBlob(ctx context.Context, tenant, uid, versionTS string, data []byte) error {
	bucket, key := s.bucketAndKey(tenant, uid, versionTS)
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return errtypes.StorageUnavailable(errors.Wrap(err, "object store put").Error())
	}
	return nil
}

// ReadBlob downloads the object at (tenant, uid, versionTS).
func (s *Store) ReadBlob(ctx context.Context, tenant, uid, versionTS string) ([]byte, error) {
	bucket, key := s.bucketAndKey(tenant, uid, versionTS)
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errtypes.StorageUnavailable(errors.Wrap(err, "object store get").Error())
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, errtypes.NotFound(key)
		}
		return nil, errtypes.StorageUnavailable(errors.Wrap(err, "object store read").Error())
	}
	return data, nil
}

// DeleteBlob removes the object at (tenant, uid, versionTS).
func (s *Store) DeleteBlob(ctx context.Context, tenant, uid, versionTS string) error {
	bucket, key := s.bucketAndKey(tenant, uid, versionTS)
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errtypes.StorageUnavailable(errors.Wrap(err, "object store delete").Error())
	}
	return nil
}

// BlobExists reports whether the object at (tenant, uid, versionTS) exists.
func (s *Store) BlobExists(ctx context.Context, tenant, uid, versionTS string) bool {
	bucket, key := s.bucketAndKey(tenant, uid, versionTS)
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	return err == nil
}

// CreateTenantBucket ensures the bucket (or prefix, which needs no
// action beyond the shared bucket existing) for tenant exists.
func (s *Store) CreateTenantBucket(ctx context.Context, tenant string) error {
	bucket := s.cfg.Bucket
	if s.cfg.Mode == PerTenantBucket {
		bucket = tenant
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return errtypes.StorageUnavailable(errors.Wrap(err, "bucket exists check").Error())
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return errtypes.StorageUnavailable(errors.Wrap(err, "make bucket").Error())
	}
	return nil
}

// TenantBucketExists reports whether tenant's bucket exists. In shared
// mode this is the shared bucket's existence, regardless of whether any
// object has yet been written under the tenant's prefix.
func (s *Store) TenantBucketExists(ctx context.Context, tenant string) bool {
	bucket := s.cfg.Bucket
	if s.cfg.Mode == PerTenantBucket {
		bucket = tenant
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	return err == nil && exists
}

// CleanupTenantBucket removes every object under the tenant's prefix
// (shared mode) or deletes the tenant's dedicated bucket outright
// (per-tenant mode).
func (s *Store) CleanupTenantBucket(ctx context.Context, tenant string) error {
	if tenant == "" {
		return errtypes.InvalidArgument("cleanup_tenant_bucket refuses an empty tenant label")
	}
	if s.cfg.Mode == PerTenantBucket {
		objCh := s.client.ListObjects(ctx, tenant, minio.ListObjectsOptions{Recursive: true})
		for obj := range objCh {
			if obj.Err != nil {
				return errtypes.StorageUnavailable(errors.Wrap(obj.Err, "list objects").Error())
			}
			if err := s.client.RemoveObject(ctx, tenant, obj.Key, minio.RemoveObjectOptions{}); err != nil {
				return errtypes.StorageUnavailable(errors.Wrap(err, "remove object").Error())
			}
		}
		if err := s.client.RemoveBucket(ctx, tenant); err != nil {
			return errtypes.StorageUnavailable(errors.Wrap(err, "remove bucket").Error())
		}
		return nil
	}
	prefix := tenant + "/"
	objCh := s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for obj := range objCh {
		if obj.Err != nil {
			return errtypes.StorageUnavailable(errors.Wrap(obj.Err, "list objects").Error())
		}
		if err := s.client.RemoveObject(ctx, s.cfg.Bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return errtypes.StorageUnavailable(errors.Wrap(err, "remove object").Error())
		}
	}
	return nil
}
