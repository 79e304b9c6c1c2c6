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

// Package metadata implements C6: a transactional, tenant-scoped store
// of entries, versions, metadata pairs, and ACL rows on top of
// database/sql. The spec treats the relational store as abstract and
// its SQL dialect as out of scope; this package only requires
// parameter-bound placeholders, which every database/sql driver
// provides, so it works unmodified against either
// github.com/mattn/go-sqlite3 (the default per-tenant local backend)
// or github.com/go-sql-driver/mysql (a shared relational backend).
package metadata

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
)

// Store is bound to exactly one tenant's database handle; the tenant
// manager (C8) is the only thing that constructs one.
type Store struct {
	db     *sql.DB
	driver string
}

// Open wires a Store around an already-opened *sql.DB. driver is either
// "sqlite3" or "mysql" and only affects schema creation DDL.
func Open(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Init creates the schema if it does not already exist.
func (s *Store) Init(ctx context.Context) error {
	boolType := "BOOLEAN"
	if s.driver == "mysql" {
		boolType = "TINYINT(1)"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			uid VARCHAR(64) PRIMARY KEY,
			name VARCHAR(1024) NOT NULL,
			parent_uid VARCHAR(64) NOT NULL DEFAULT '',
			kind VARCHAR(16) NOT NULL,
			owner VARCHAR(255) NOT NULL,
			mode INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			modified_at BIGINT NOT NULL,
			current_version VARCHAR(32) NOT NULL DEFAULT '',
			deleted ` + boolType + ` NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS versions (
			uid VARCHAR(64) NOT NULL,
			version_ts VARCHAR(32) NOT NULL,
			size_bytes BIGINT NOT NULL,
			storage_path VARCHAR(1024) NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (uid, version_ts)
		)`,
		`CREATE TABLE IF NOT EXISTS metadata_pairs (
			uid VARCHAR(64) NOT NULL,
			version_ts VARCHAR(32) NOT NULL,
			mkey VARCHAR(255) NOT NULL,
			mvalue TEXT NOT NULL,
			PRIMARY KEY (uid, version_ts, mkey)
		)`,
		`CREATE TABLE IF NOT EXISTS acl_rows (
			uid VARCHAR(64) NOT NULL,
			principal VARCHAR(255) NOT NULL,
			principal_kind VARCHAR(16) NOT NULL,
			perm_mask INTEGER NOT NULL,
			PRIMARY KEY (uid, principal, principal_kind)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errtypes.Internal(errors.Wrap(err, "schema init").Error())
		}
	}
	return nil
}

// InsertEntry inserts a new Entry row. In the same transaction it first
// checks (parent_uid, name, deleted=false) uniqueness and returns
// AlreadyExists on a collision.
func (s *Store) InsertEntry(ctx context.Context, e Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "begin tx").Error())
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE parent_uid = ? AND name = ? AND deleted = 0`,
		e.ParentUID, e.Name,
	).Scan(&count); err != nil {
		return errtypes.Internal(errors.Wrap(err, "uniqueness check").Error())
	}
	if count > 0 {
		return errtypes.AlreadyExists(e.ParentUID + "/" + e.Name)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (uid, name, parent_uid, kind, owner, mode, created_at, modified_at, current_version, deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		e.UID, e.Name, e.ParentUID, string(e.Kind), e.Owner, e.Mode, e.CreatedAt, e.ModifiedAt, e.CurrentVersion,
	)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "insert entry").Error())
	}
	if err := tx.Commit(); err != nil {
		return errtypes.Internal(errors.Wrap(err, "commit").Error())
	}
	return nil
}

// GetEntry loads a single Entry by uid, including tombstoned ones.
func (s *Store) GetEntry(ctx context.Context, uid string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT uid, name, parent_uid, kind, owner, mode, created_at, modified_at, current_version, deleted
		 FROM entries WHERE uid = ?`, uid)
	var e Entry
	var kind string
	var deleted int
	if err := row.Scan(&e.UID, &e.Name, &e.ParentUID, &kind, &e.Owner, &e.Mode, &e.CreatedAt, &e.ModifiedAt, &e.CurrentVersion, &deleted); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, errtypes.NotFound(uid)
		}
		return Entry{}, errtypes.Internal(errors.Wrap(err, "get entry").Error())
	}
	e.Kind = Kind(kind)
	e.Deleted = deleted != 0
	return e, nil
}

// UpdateEntryName renames uid, bumping modified_at, after checking
// uniqueness under its current parent.
func (s *Store) UpdateEntryName(ctx context.Context, uid, newName string, modifiedAt int64) error {
	e, err := s.GetEntry(ctx, uid)
	if err != nil {
		return err
	}
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE parent_uid = ? AND name = ? AND deleted = 0 AND uid != ?`,
		e.ParentUID, newName, uid,
	).Scan(&count); err != nil {
		return errtypes.Internal(errors.Wrap(err, "uniqueness check").Error())
	}
	if count > 0 {
		return errtypes.AlreadyExists(e.ParentUID + "/" + newName)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE entries SET name = ?, modified_at = ? WHERE uid = ?`, newName, modifiedAt, uid)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "update entry name").Error())
	}
	return nil
}

// MoveEntry reparents uid under newParent with newName, checking
// uniqueness under the destination.
func (s *Store) MoveEntry(ctx context.Context, uid, newParent, newName string, modifiedAt int64) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE parent_uid = ? AND name = ? AND deleted = 0 AND uid != ?`,
		newParent, newName, uid,
	).Scan(&count); err != nil {
		return errtypes.Internal(errors.Wrap(err, "uniqueness check").Error())
	}
	if count > 0 {
		return errtypes.AlreadyExists(newParent + "/" + newName)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET parent_uid = ?, name = ?, modified_at = ? WHERE uid = ?`,
		newParent, newName, modifiedAt, uid)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "move entry").Error())
	}
	return nil
}

// TouchEntry bumps modified_at without altering any other field, used
// when a metadata write is bound to an entry's live state.
func (s *Store) TouchEntry(ctx context.Context, uid string, modifiedAt int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entries SET modified_at = ? WHERE uid = ?`, modifiedAt, uid)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "touch entry").Error())
	}
	return nil
}

// MarkDeleted sets the tombstone flag.
func (s *Store) MarkDeleted(ctx context.Context, uid string, modifiedAt int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entries SET deleted = 1, modified_at = ? WHERE uid = ?`, modifiedAt, uid)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "mark deleted").Error())
	}
	return nil
}

// MarkUndeleted clears the tombstone flag.
func (s *Store) MarkUndeleted(ctx context.Context, uid string, modifiedAt int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entries SET deleted = 0, modified_at = ? WHERE uid = ?`, modifiedAt, uid)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "mark undeleted").Error())
	}
	return nil
}

// CountNonDeletedChildren counts non-tombstoned children of uid.
func (s *Store) CountNonDeletedChildren(ctx context.Context, uid string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE parent_uid = ? AND deleted = 0`, uid,
	).Scan(&count); err != nil {
		return 0, errtypes.Internal(errors.Wrap(err, "count children").Error())
	}
	return count, nil
}

// ListChildren returns non-tombstoned children of uid, ordered by name
// ascending then created_at ascending. limit=0 means no limit.
func (s *Store) ListChildren(ctx context.Context, uid string, limit, offset int) ([]Entry, error) {
	return s.listChildren(ctx, uid, false, limit, offset)
}

// ListChildrenIncludingDeleted returns every child of uid, including
// tombstoned ones, in the same deterministic order.
func (s *Store) ListChildrenIncludingDeleted(ctx context.Context, uid string, limit, offset int) ([]Entry, error) {
	return s.listChildren(ctx, uid, true, limit, offset)
}

func (s *Store) listChildren(ctx context.Context, uid string, includeDeleted bool, limit, offset int) ([]Entry, error) {
	query := `SELECT uid, name, parent_uid, kind, owner, mode, created_at, modified_at, current_version, deleted
			   FROM entries WHERE parent_uid = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY name ASC, created_at ASC`
	args := []any{uid}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errtypes.Internal(errors.Wrap(err, "list children").Error())
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var deleted int
		if err := rows.Scan(&e.UID, &e.Name, &e.ParentUID, &kind, &e.Owner, &e.Mode, &e.CreatedAt, &e.ModifiedAt, &e.CurrentVersion, &deleted); err != nil {
			return nil, errtypes.Internal(errors.Wrap(err, "scan entry").Error())
		}
		e.Kind = Kind(kind)
		e.Deleted = deleted != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertVersion inserts an immutable Version row. Versions are never
// mutated once inserted.
func (s *Store) InsertVersion(ctx context.Context, v Version) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO versions (uid, version_ts, size_bytes, storage_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.UID, v.VersionTS, v.SizeBytes, v.StoragePath, v.CreatedAt)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "insert version").Error())
	}
	return nil
}

// SetCurrentVersion points an Entry's current_version at versionTS.
func (s *Store) SetCurrentVersion(ctx context.Context, uid, versionTS string, modifiedAt int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET current_version = ?, modified_at = ? WHERE uid = ?`, versionTS, modifiedAt, uid)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "set current version").Error())
	}
	return nil
}

// ListVersionsDesc returns every version_ts for uid, newest first.
func (s *Store) ListVersionsDesc(ctx context.Context, uid string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uid, version_ts, size_bytes, storage_path, created_at FROM versions WHERE uid = ? ORDER BY version_ts DESC`, uid)
	if err != nil {
		return nil, errtypes.Internal(errors.Wrap(err, "list versions").Error())
	}
	defer rows.Close()
	var out []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.UID, &v.VersionTS, &v.SizeBytes, &v.StoragePath, &v.CreatedAt); err != nil {
			return nil, errtypes.Internal(errors.Wrap(err, "scan version").Error())
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersion loads a single Version row.
func (s *Store) GetVersion(ctx context.Context, uid, versionTS string) (Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT uid, version_ts, size_bytes, storage_path, created_at FROM versions WHERE uid = ? AND version_ts = ?`,
		uid, versionTS)
	var v Version
	if err := row.Scan(&v.UID, &v.VersionTS, &v.SizeBytes, &v.StoragePath, &v.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Version{}, errtypes.NotFound(uid + "@" + versionTS)
		}
		return Version{}, errtypes.Internal(errors.Wrap(err, "get version").Error())
	}
	return v, nil
}

// GetVersionPath resolves (uid, version_ts) to its storage_path.
func (s *Store) GetVersionPath(ctx context.Context, uid, versionTS string) (string, error) {
	v, err := s.GetVersion(ctx, uid, versionTS)
	if err != nil {
		return "", err
	}
	return v.StoragePath, nil
}

// DeleteVersion removes a single Version row (used by purge).
func (s *Store) DeleteVersion(ctx context.Context, uid, versionTS string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM versions WHERE uid = ? AND version_ts = ?`, uid, versionTS)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "delete version").Error())
	}
	return nil
}

// RestoreToVersion is a single transaction that points current_version
// at versionTS and bumps modified_at, failing if the target Version
// does not exist.
func (s *Store) RestoreToVersion(ctx context.Context, uid, versionTS string, modifiedAt int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "begin tx").Error())
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM versions WHERE uid = ? AND version_ts = ?`, uid, versionTS).Scan(&count); err != nil {
		return errtypes.Internal(errors.Wrap(err, "check version exists").Error())
	}
	if count == 0 {
		return errtypes.NotFound(uid + "@" + versionTS)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE entries SET current_version = ?, modified_at = ? WHERE uid = ?`, versionTS, modifiedAt, uid); err != nil {
		return errtypes.Internal(errors.Wrap(err, "restore to version").Error())
	}
	if err := tx.Commit(); err != nil {
		return errtypes.Internal(errors.Wrap(err, "commit").Error())
	}
	return nil
}

// SetMetadata upserts (uid, ref, key) -> value.
func (s *Store) SetMetadata(ctx context.Context, uid string, ref VersionRef, key, value string) error {
	vts := ref.encode()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM metadata_pairs WHERE uid = ? AND version_ts = ? AND mkey = ?`, uid, vts, key)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "clear metadata").Error())
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metadata_pairs (uid, version_ts, mkey, mvalue) VALUES (?, ?, ?, ?)`, uid, vts, key, value)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "set metadata").Error())
	}
	return nil
}

// GetMetadata reads a single metadata value.
func (s *Store) GetMetadata(ctx context.Context, uid string, ref VersionRef, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT mvalue FROM metadata_pairs WHERE uid = ? AND version_ts = ? AND mkey = ?`,
		uid, ref.encode(), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errtypes.NotFound(key)
	}
	if err != nil {
		return "", errtypes.Internal(errors.Wrap(err, "get metadata").Error())
	}
	return value, nil
}

// GetAllMetadata reads every metadata pair bound to (uid, ref).
func (s *Store) GetAllMetadata(ctx context.Context, uid string, ref VersionRef) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mkey, mvalue FROM metadata_pairs WHERE uid = ? AND version_ts = ?`, uid, ref.encode())
	if err != nil {
		return nil, errtypes.Internal(errors.Wrap(err, "get all metadata").Error())
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errtypes.Internal(errors.Wrap(err, "scan metadata").Error())
		}
		out[k] = v
	}
	return out, rows.Err()
}

// DeleteMetadata removes a single metadata pair.
func (s *Store) DeleteMetadata(ctx context.Context, uid string, ref VersionRef, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM metadata_pairs WHERE uid = ? AND version_ts = ? AND mkey = ?`, uid, ref.encode(), key)
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "delete metadata").Error())
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errtypes.NotFound(key)
	}
	return nil
}

// InsertAcl ORs mask into any existing row for (uid, principal, kind),
// making grant idempotent.
func (s *Store) InsertAcl(ctx context.Context, row AclRow) error {
	var existing uint8
	err := s.db.QueryRowContext(ctx,
		`SELECT perm_mask FROM acl_rows WHERE uid = ? AND principal = ? AND principal_kind = ?`,
		row.UID, row.Principal, row.PrincipalKind,
	).Scan(&existing)
	switch err {
	case nil:
		merged := existing | row.PermMask
		_, err = s.db.ExecContext(ctx,
			`UPDATE acl_rows SET perm_mask = ? WHERE uid = ? AND principal = ? AND principal_kind = ?`,
			merged, row.UID, row.Principal, row.PrincipalKind)
		if err != nil {
			return errtypes.Internal(errors.Wrap(err, "merge acl").Error())
		}
		return nil
	case sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO acl_rows (uid, principal, principal_kind, perm_mask) VALUES (?, ?, ?, ?)`,
			row.UID, row.Principal, row.PrincipalKind, row.PermMask)
		if err != nil {
			return errtypes.Internal(errors.Wrap(err, "insert acl").Error())
		}
		return nil
	default:
		return errtypes.Internal(errors.Wrap(err, "lookup acl").Error())
	}
}

// DeleteAcl clears bits from an existing row, deleting it outright when
// the mask becomes zero.
func (s *Store) DeleteAcl(ctx context.Context, uid, principal, kind string, mask uint8) error {
	var existing uint8
	err := s.db.QueryRowContext(ctx,
		`SELECT perm_mask FROM acl_rows WHERE uid = ? AND principal = ? AND principal_kind = ?`,
		uid, principal, kind,
	).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "lookup acl").Error())
	}
	remaining := existing &^ mask
	if remaining == 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM acl_rows WHERE uid = ? AND principal = ? AND principal_kind = ?`, uid, principal, kind)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE acl_rows SET perm_mask = ? WHERE uid = ? AND principal = ? AND principal_kind = ?`,
			remaining, uid, principal, kind)
	}
	if err != nil {
		return errtypes.Internal(errors.Wrap(err, "revoke acl").Error())
	}
	return nil
}

// ListAclForUID returns every ACL row bound to uid.
func (s *Store) ListAclForUID(ctx context.Context, uid string) ([]AclRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uid, principal, principal_kind, perm_mask FROM acl_rows WHERE uid = ?`, uid)
	if err != nil {
		return nil, errtypes.Internal(errors.Wrap(err, "list acl").Error())
	}
	defer rows.Close()
	var out []AclRow
	for rows.Next() {
		var r AclRow
		if err := rows.Scan(&r.UID, &r.Principal, &r.PrincipalKind, &r.PermMask); err != nil {
			return nil, errtypes.Internal(errors.Wrap(err, "scan acl").Error())
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SumCurrentVersionSizes sums size_bytes across every non-deleted
// entry's current version for this tenant, used for quota accounting.
func (s *Store) SumCurrentVersionSizes(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(v.size_bytes) FROM versions v
		JOIN entries e ON e.uid = v.uid AND e.current_version = v.version_ts
		WHERE e.deleted = 0
	`).Scan(&total)
	if err != nil {
		return 0, errtypes.Internal(errors.Wrap(err, "sum quota usage").Error())
	}
	return total.Int64, nil
}
