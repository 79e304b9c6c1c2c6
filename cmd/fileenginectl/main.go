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

// Command fileenginectl is an interactive shell over one tenant's
// filesystem core, in the shape of the teacher project's "reva-cli":
// a flag.FlagSet-backed command table, a go-prompt loop when invoked
// with no arguments, and single-shot execution when args are given on
// the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/config"
	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/log"
)

var (
	configPath string
	user       string
	roles      string
	jsonLogs   bool

	sess *session
)

func init() {
	flag.StringVar(&configPath, "config", "fileengine.conf", "path to the KEY=VALUE tenant config file")
	flag.StringVar(&user, "user", "", "caller identity for authorization checks")
	flag.StringVar(&roles, "roles", "", "comma-separated role list for the caller")
	flag.BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of console output")
	flag.Parse()
}

func main() {
	mode := "console"
	if jsonLogs {
		mode = "json"
	}
	logger := log.New(os.Stderr, mode)

	raw, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Println("error loading config:", err)
		os.Exit(1)
	}
	asAny := make(map[string]any, len(raw))
	for k, v := range raw {
		asAny[k] = v
	}
	cfg, err := config.DecodeTenantConfig(asAny)
	if err != nil {
		fmt.Println("error decoding config:", err)
		os.Exit(1)
	}

	sess = newSession(logger, cfg.Tenant, user, roles)
	if err := sess.ensureInitialized(context.Background(), cfg); err != nil {
		fmt.Println("error initializing tenant:", err)
		os.Exit(1)
	}

	commandList := []*command{
		lsCommand(),
		statCommand(),
		mkdirCommand(),
		touchCommand(),
		putCommand(),
		getCommand(),
		rmCommand(),
		rmdirCommand(),
		mvCommand(),
		cpCommand(),
		versionsCommand(),
		restoreCommand(),
		purgeCommand(),
		grantCommand(),
		revokeCommand(),
		setMetaCommand(),
		getMetaCommand(),
	}

	executor := &Executor{Commands: commandList}
	completer := &Completer{Commands: commandList}

	if len(flag.Args()) > 0 {
		executor.Execute(strings.Join(flag.Args(), " "))
		return
	}

	fmt.Printf("fileenginectl — tenant %q, user %q\n", cfg.Tenant, user)
	fmt.Println(`Use "exit" or Ctrl-D to leave.`)
	p := prompt.New(
		executor.Execute,
		completer.Complete,
		prompt.OptionTitle("fileenginectl"),
		prompt.OptionPrefix(">> "),
	)
	p.Run()
}
