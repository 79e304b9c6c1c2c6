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
	"fmt"
	"os"
	"strconv"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/metadata"
)

func ctx() context.Context { return context.Background() }

func lsCommand() *command {
	cmd := newCommand("ls")
	cmd.Description = func() string { return "list a directory's children: ls <uid> [--deleted]" }
	withDeleted := cmd.Bool("deleted", false, "include soft-deleted children")
	cmd.Action = func() error {
		if cmd.NArg() < 1 {
			fmt.Println(cmd.Usage())
			return nil
		}
		children, err := sess.engine.Listdir(ctx(), sess.tenant, cmd.Arg(0), sess.user, sess.roles, *withDeleted, 0, 0)
		if err != nil {
			return err
		}
		for _, c := range children {
			fmt.Printf("%s\t%s\t%s\n", c.UID, c.Kind, c.Name)
		}
		return nil
	}
	return cmd
}

func statCommand() *command {
	cmd := newCommand("stat")
	cmd.Description = func() string { return "show entry metadata: stat <uid>" }
	cmd.Action = func() error {
		if cmd.NArg() < 1 {
			fmt.Println(cmd.Usage())
			return nil
		}
		info, err := sess.engine.Stat(ctx(), sess.tenant, cmd.Arg(0), sess.user, sess.roles)
		if err != nil {
			return err
		}
		fmt.Printf("uid=%s name=%s kind=%s owner=%s mode=%o versions=%d size=%d current=%s deleted=%v\n",
			info.UID, info.Name, info.Kind, info.Owner, info.Mode, info.VersionCount, info.SizeBytes, info.CurrentVersion, info.Deleted)
		return nil
	}
	return cmd
}

func mkdirCommand() *command {
	cmd := newCommand("mkdir")
	cmd.Description = func() string { return "create a directory: mkdir <parent-uid> <name>" }
	mode := cmd.Uint("mode", 0o750, "unix-style permission bits")
	cmd.Action = func() error {
		if cmd.NArg() < 2 {
			fmt.Println(cmd.Usage())
			return nil
		}
		uid, err := sess.engine.Mkdir(ctx(), sess.tenant, cmd.Arg(0), cmd.Arg(1), sess.user, sess.roles, uint16(*mode))
		if err != nil {
			return err
		}
		fmt.Println(uid)
		return nil
	}
	return cmd
}

func touchCommand() *command {
	cmd := newCommand("touch")
	cmd.Description = func() string { return "create an empty regular file: touch <parent-uid> <name>" }
	cmd.Action = func() error {
		if cmd.NArg() < 2 {
			fmt.Println(cmd.Usage())
			return nil
		}
		uid, err := sess.engine.Touch(ctx(), sess.tenant, cmd.Arg(0), cmd.Arg(1), sess.user, sess.roles)
		if err != nil {
			return err
		}
		fmt.Println(uid)
		return nil
	}
	return cmd
}

func putCommand() *command {
	cmd := newCommand("put")
	cmd.Description = func() string { return "upload a new version from a local file: put <uid> <local-path>" }
	cmd.Action = func() error {
		if cmd.NArg() < 2 {
			fmt.Println(cmd.Usage())
			return nil
		}
		data, err := os.ReadFile(cmd.Arg(1))
		if err != nil {
			return err
		}
		versionTS, err := sess.engine.Put(ctx(), sess.tenant, cmd.Arg(0), data, sess.user, sess.roles)
		if err != nil {
			return err
		}
		fmt.Println(versionTS)
		return nil
	}
	return cmd
}

func getCommand() *command {
	cmd := newCommand("get")
	cmd.Description = func() string { return "download the current version: get <uid> <local-path>" }
	version := cmd.String("version", "", "fetch a specific version_ts instead of current")
	cmd.Action = func() error {
		if cmd.NArg() < 2 {
			fmt.Println(cmd.Usage())
			return nil
		}
		var data []byte
		var err error
		if *version != "" {
			data, err = sess.engine.GetVersion(ctx(), sess.tenant, cmd.Arg(0), *version, sess.user, sess.roles)
		} else {
			data, err = sess.engine.Get(ctx(), sess.tenant, cmd.Arg(0), sess.user, sess.roles)
		}
		if err != nil {
			return err
		}
		return os.WriteFile(cmd.Arg(1), data, 0o640)
	}
	return cmd
}

func rmCommand() *command {
	cmd := newCommand("rm")
	cmd.Description = func() string { return "soft-delete an entry: rm <uid>" }
	cmd.Action = func() error {
		if cmd.NArg() < 1 {
			fmt.Println(cmd.Usage())
			return nil
		}
		return sess.engine.Remove(ctx(), sess.tenant, cmd.Arg(0), sess.user, sess.roles)
	}
	return cmd
}

func rmdirCommand() *command {
	cmd := newCommand("rmdir")
	cmd.Description = func() string { return "soft-delete an empty directory: rmdir <uid>" }
	cmd.Action = func() error {
		if cmd.NArg() < 1 {
			fmt.Println(cmd.Usage())
			return nil
		}
		return sess.engine.Rmdir(ctx(), sess.tenant, cmd.Arg(0), sess.user, sess.roles)
	}
	return cmd
}

func mvCommand() *command {
	cmd := newCommand("mv")
	cmd.Description = func() string { return "reparent an entry: mv <uid> <new-parent-uid> <new-name>" }
	cmd.Action = func() error {
		if cmd.NArg() < 3 {
			fmt.Println(cmd.Usage())
			return nil
		}
		return sess.engine.Move(ctx(), sess.tenant, cmd.Arg(0), cmd.Arg(1), cmd.Arg(2), sess.user, sess.roles)
	}
	return cmd
}

func cpCommand() *command {
	cmd := newCommand("cp")
	cmd.Description = func() string { return "copy an entry's current version: cp <uid> <new-parent-uid> <new-name>" }
	cmd.Action = func() error {
		if cmd.NArg() < 3 {
			fmt.Println(cmd.Usage())
			return nil
		}
		uid, err := sess.engine.Copy(ctx(), sess.tenant, cmd.Arg(0), cmd.Arg(1), cmd.Arg(2), sess.user, sess.roles)
		if err != nil {
			return err
		}
		fmt.Println(uid)
		return nil
	}
	return cmd
}

func versionsCommand() *command {
	cmd := newCommand("versions")
	cmd.Description = func() string { return "list versions newest-first: versions <uid>" }
	cmd.Action = func() error {
		if cmd.NArg() < 1 {
			fmt.Println(cmd.Usage())
			return nil
		}
		vs, err := sess.engine.ListVersions(ctx(), sess.tenant, cmd.Arg(0), sess.user, sess.roles)
		if err != nil {
			return err
		}
		for _, v := range vs {
			fmt.Println(v)
		}
		return nil
	}
	return cmd
}

func restoreCommand() *command {
	cmd := newCommand("restore")
	cmd.Description = func() string { return "point current_version at an existing version: restore <uid> <version_ts>" }
	cmd.Action = func() error {
		if cmd.NArg() < 2 {
			fmt.Println(cmd.Usage())
			return nil
		}
		return sess.engine.RestoreToVersion(ctx(), sess.tenant, cmd.Arg(0), cmd.Arg(1), sess.user, sess.roles)
	}
	return cmd
}

func purgeCommand() *command {
	cmd := newCommand("purge-versions")
	cmd.Description = func() string { return "drop old versions, keeping the N most recent: purge-versions <uid> <keep-count>" }
	cmd.Action = func() error {
		if cmd.NArg() < 2 {
			fmt.Println(cmd.Usage())
			return nil
		}
		keep, err := strconv.Atoi(cmd.Arg(1))
		if err != nil {
			return err
		}
		return sess.engine.PurgeOldVersions(ctx(), sess.tenant, cmd.Arg(0), sess.user, sess.roles, keep)
	}
	return cmd
}

func grantCommand() *command {
	cmd := newCommand("grant")
	cmd.Description = func() string { return "grant a permission mask: grant <uid> <principal> <user|role> <mask>" }
	cmd.Action = func() error {
		if cmd.NArg() < 4 {
			fmt.Println(cmd.Usage())
			return nil
		}
		mask, err := strconv.Atoi(cmd.Arg(3))
		if err != nil {
			return err
		}
		return sess.engine.GrantPermission(ctx(), sess.tenant, cmd.Arg(0), cmd.Arg(1), cmd.Arg(2), uint8(mask), sess.user, sess.roles)
	}
	return cmd
}

func revokeCommand() *command {
	cmd := newCommand("revoke")
	cmd.Description = func() string { return "revoke a permission mask: revoke <uid> <principal> <user|role> <mask>" }
	cmd.Action = func() error {
		if cmd.NArg() < 4 {
			fmt.Println(cmd.Usage())
			return nil
		}
		mask, err := strconv.Atoi(cmd.Arg(3))
		if err != nil {
			return err
		}
		return sess.engine.RevokePermission(ctx(), sess.tenant, cmd.Arg(0), cmd.Arg(1), cmd.Arg(2), uint8(mask), sess.user, sess.roles)
	}
	return cmd
}

func setMetaCommand() *command {
	cmd := newCommand("set-meta")
	cmd.Description = func() string { return "set a metadata key bound to the entry: set-meta <uid> <key> <value>" }
	cmd.Action = func() error {
		if cmd.NArg() < 3 {
			fmt.Println(cmd.Usage())
			return nil
		}
		return sess.engine.SetMetadata(ctx(), sess.tenant, cmd.Arg(0), metadata.CurrentRef(), cmd.Arg(1), cmd.Arg(2), sess.user, sess.roles)
	}
	return cmd
}

func getMetaCommand() *command {
	cmd := newCommand("get-meta")
	cmd.Description = func() string { return "read a metadata key bound to the entry: get-meta <uid> <key>" }
	cmd.Action = func() error {
		if cmd.NArg() < 2 {
			fmt.Println(cmd.Usage())
			return nil
		}
		v, err := sess.engine.GetMetadata(ctx(), sess.tenant, cmd.Arg(0), metadata.CurrentRef(), cmd.Arg(1), sess.user, sess.roles)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	}
	return cmd
}
