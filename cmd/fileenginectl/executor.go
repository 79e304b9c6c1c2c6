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
	"fmt"
	"os"
	"strings"
)

// Executor dispatches one line of interactive input to the matching
// command. There is no RPC transport to time out on here: every command
// runs the fsengine.Engine in-process against the local tenant store, so
// unlike the teacher's gateway-backed client this never needs the
// goroutine-plus-timeout wrapper around Action().
type Executor struct {
	Commands []*command
}

// Execute runs the command named by the first word of s.
func (e *Executor) Execute(s string) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return
	case "exit", "quit":
		os.Exit(0)
	}

	args := strings.Split(s, " ")
	action := args[0]
	for _, v := range e.Commands {
		if v.Name != action {
			continue
		}
		if err := v.Parse(args[1:]); err != nil {
			fmt.Println(err)
			return
		}
		if err := v.Action(); err != nil {
			fmt.Println("error:", err)
		}
		return
	}
	fmt.Println("invalid command:", action)
}
