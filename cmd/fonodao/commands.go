// Copyright 2025 Blink Labs Software
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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/blinklabs-io/fonodao"
	"github.com/blinklabs-io/fonodao/internal/config"
	"github.com/blinklabs-io/fonodao/internal/node"
	"github.com/blinklabs-io/fonodao/internal/version"
	"github.com/spf13/cobra"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", programName, version.GetVersionString())
		},
	}
}

// printPolicy writes the effective policy of the configured database as JSON
func printPolicy(cfg *config.Config, out io.Writer) error {
	// Keep stdout clean for the JSON document
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	nodeCfg, err := node.NodeConfig(cfg, logger, nil)
	if err != nil {
		return err
	}
	n, err := fonodao.New(nodeCfg)
	if err != nil {
		return err
	}
	defer n.Stop() //nolint:errcheck
	if err := n.Ready(); err != nil {
		return err
	}
	pol, err := n.DAO().Policy()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pol)
}

func policyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the effective policy",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			if err := printPolicy(cfg, os.Stdout); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
}
