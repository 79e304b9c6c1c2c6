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

package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsClientForValidEndpoint(t *testing.T) {
	s, err := New(Config{Endpoint: "s3.example.org", AccessKey: "a", SecretKey: "b", Region: "us-east-1"})
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestBucketAndKey_SharedBucketModeUsesTenantPrefix(t *testing.T) {
	s := &Store{cfg: Config{Mode: SharedBucket, Bucket: "fileengine"}}
	bucket, key := s.bucketAndKey("acme", "uid1", "ts1")
	assert.Equal(t, "fileengine", bucket)
	assert.Equal(t, "acme/uid1/ts1", key)
}

func TestBucketAndKey_PerTenantBucketModeUsesTenantAsBucketName(t *testing.T) {
	s := &Store{cfg: Config{Mode: PerTenantBucket}}
	bucket, key := s.bucketAndKey("acme", "uid1", "ts1")
	assert.Equal(t, "acme", bucket)
	assert.Equal(t, "uid1/ts1", key)
}

func TestBucketAndKey_DistinctTenantsNeverCollideInSharedMode(t *testing.T) {
	s := &Store{cfg: Config{Mode: SharedBucket, Bucket: "fileengine"}}
	_, keyA := s.bucketAndKey("acme", "uid1", "ts1")
	_, keyB := s.bucketAndKey("globex", "uid1", "ts1")
	assert.NotEqual(t, keyA, keyB)
}
