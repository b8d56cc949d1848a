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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/packetd/probed/probe"
	"github.com/packetd/probed/script"
)

var runConfig struct {
	ScriptFile         string
	Address            string
	Port               int
	Protocol           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a probe script once against a target and print the result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %q: %v\n", args[0], err)
			os.Exit(1)
		}

		scr, err := script.Parse(string(b))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse %q: %v\n", args[0], err)
			os.Exit(1)
		}

		cfg := probe.ServerConfig{
			Name:               args[0],
			Address:            runConfig.Address,
			Port:               runConfig.Port,
			Protocol:           runConfig.Protocol,
			Timeout:            runConfig.Timeout,
			InsecureSkipVerify: runConfig.InsecureSkipVerify,
		}

		ctx, cancel := context.WithTimeout(context.Background(), runConfig.Timeout+5*time.Second)
		defer cancel()

		res, err := probe.Run(ctx, cfg, scr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to run probe: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("success=%v elapsed=%dms\n", res.Success, res.ElapsedMS)
		if res.Err != nil {
			fmt.Printf("error: %v\n", res.Err)
		}
		fmt.Printf("label: %s\n", res.Label)
		for name, v := range res.Env {
			fmt.Printf("  %s = %s\n", name, v.AsString())
		}
		if !res.Success {
			os.Exit(1)
		}
	},
	Example: "# probed run minecraft.script --address play.example.com --port 25565 --protocol tcp",
}

func init() {
	runCmd.Flags().StringVar(&runConfig.Address, "address", "", "Target host or IP")
	runCmd.Flags().IntVar(&runConfig.Port, "port", 0, "Target port")
	runCmd.Flags().StringVar(&runConfig.Protocol, "protocol", "tcp", "Transport: tcp | udp | http | https")
	runCmd.Flags().DurationVar(&runConfig.Timeout, "timeout", 5*time.Second, "Per-operation timeout")
	runCmd.Flags().BoolVar(&runConfig.InsecureSkipVerify, "insecure", false, "Skip TLS certificate verification for https")
	rootCmd.AddCommand(runCmd)
}
