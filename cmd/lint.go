// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packetd/probed/errs"
	"github.com/packetd/probed/script"
)

var lintCmd = &cobra.Command{
	Use:   "lint <script>",
	Short: "Parse a probe script and report syntax errors",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %q: %v\n", args[0], err)
			os.Exit(1)
		}

		scr, err := script.Parse(string(b))
		if err != nil {
			if se, ok := errs.As(err, errs.KindSyntax); ok {
				fmt.Fprintf(os.Stderr, "%s: line %d: %s\n", args[0], se.Line, se.Msg)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
			}
			os.Exit(1)
		}

		fmt.Printf("%s: ok, %d block(s)\n", args[0], len(scr.Blocks))
		for _, block := range scr.Blocks {
			fmt.Printf("  %s\n", block.Kind)
		}
	},
	Example: "# probed lint minecraft.script",
}

func init() {
	rootCmd.AddCommand(lintCmd)
}
