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

package metadata

// Kind enumerates the three Entry kinds. Symlink is modeled but inert:
// no operation in this package manipulates symlink targets.
type Kind string

const (
	KindRegular   Kind = "regular"
	KindDirectory Kind = "directory"
	KindSymlink   Kind = "symlink"
)

// VersionRef names either the metadata bound to the entry itself, stored
// under the "current" sentinel, or an explicitly named version_ts. It
// wraps the sentinel string in a tagged union so callers never spell it.
type VersionRef struct {
	Current bool
	At      string
}

// CurrentRef is the VersionRef naming the entry's live metadata.
func CurrentRef() VersionRef { return VersionRef{Current: true} }

// AtRef is the VersionRef naming an explicit content snapshot.
func AtRef(versionTS string) VersionRef { return VersionRef{At: versionTS} }

// sentinel is the on-disk encoding of CurrentRef in the version_ts column.
const sentinel = "current"

func (r VersionRef) encode() string {
	if r.Current {
		return sentinel
	}
	return r.At
}

// Entry is the row-level representation of a file or directory.
type Entry struct {
	UID            string
	Name           string
	ParentUID      string // empty for tenant roots
	Kind           Kind
	Owner          string
	Mode           uint16 // 12-bit permission value
	CreatedAt      int64  // unix millis
	ModifiedAt     int64  // unix millis
	CurrentVersion string // empty means null
	Deleted        bool
}

// Version is one immutable content snapshot of a regular Entry.
type Version struct {
	UID         string
	VersionTS   string
	SizeBytes   int64
	StoragePath string
	CreatedAt   int64
}

// AclRow is one additive grant.
type AclRow struct {
	UID           string
	Principal     string
	PrincipalKind string // "user" or "role"
	PermMask      uint8
}

// Permission bits.
const (
	PermRead    uint8 = 1
	PermWrite   uint8 = 2
	PermExecute uint8 = 4
)
