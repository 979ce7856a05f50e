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
	"bytes"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/packetd/schemawire/common"
	"github.com/packetd/schemawire/confengine"
	"github.com/packetd/schemawire/controller"
	"github.com/packetd/schemawire/internal/sigs"
	"github.com/packetd/schemawire/logger"
)

type captureCmdConfig struct {
	Schema        string
	Port          int
	Ifaces        string
	File          string
	IPv4Only      bool
	NoPromiscuous bool
	Console       bool
	LogFile       string
	LogSize       int
	LogBackups    int
	ServerAddr    string
	MetricsLabels []string
}

func (c *captureCmdConfig) Yaml() []byte {
	const text = `
logger:
  stdout: true

sniffer:
  ifaces: {{ .Ifaces }}
  file: {{ .File }}
  ipv4Only: {{ .IPv4Only }}
  noPromiscuous: {{ .NoPromiscuous }}
  port: {{ .Port }}

controller:
  schema: {{ .Schema }}

engine:
  port: {{ .Port }}
  idleTimeout: 5m
  sink:
    console: {{ .Console }}
    filename: {{ .LogFile }}
    maxSize: {{ .LogSize }}
    maxBackups: {{ .LogBackups }}
    maxAge: 7
  metrics:
    enabled: {{ if .MetricsLabels }}true{{ else }}false{{ end }}
    requiredLabels: [{{ range $i, $l := .MetricsLabels }}{{ if $i }}, {{ end }}{{ $l }}{{ end }}]

server:
  enabled: {{ if .ServerAddr }}true{{ else }}false{{ end }}
  address: {{ .ServerAddr }}
  timeout: 30s
`
	tpl, err := template.New("capture").Parse(text)
	if err != nil {
		return nil
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, c); err != nil {
		return nil
	}
	return buf.Bytes()
}

var captureConfig captureCmdConfig

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture live TCP traffic, decode it against a schema and log it",
	Run: func(cmd *cobra.Command, args []string) {
		if captureConfig.Schema == "" {
			fmt.Fprintln(os.Stderr, "error: --schema is required")
			os.Exit(1)
		}

		cfg, err := confengine.LoadContent(captureConfig.Yaml())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		ctr, err := controller.New(cfg, common.GetBuildInfo())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create controller: %v\n"+
				"Note: this operation may require root privileges (try running with 'sudo')\n", err)
			os.Exit(1)
		}
		if err := ctr.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start controller: %v\n", err)
			os.Exit(1)
		}

		var reloadTotal int
		for {
			select {
			case <-sigs.Terminate():
				ctr.Stop()
				return

			case <-sigs.Reload():
				reloadTotal++

				cfg, err := confengine.LoadContent(captureConfig.Yaml())
				if err != nil {
					fmt.Fprintf(os.Stderr, "failed to reload config (count=%d): %v\n", reloadTotal, err)
					continue
				}

				start := time.Now()
				if err := ctr.Reload(cfg); err != nil {
					logger.Errorf("failed to reload config: %v", err)
				}
				logger.Infof("reload (count=%d) took %s", reloadTotal, time.Since(start))
			}
		}
	},
	Example: "# schemawire capture --schema proto.json --port 7171 --ifaces any --console",
}

func init() {
	captureCmd.Flags().StringVar(&captureConfig.Schema, "schema", "", "Path to the JSON protocol schema (required)")
	captureCmd.Flags().IntVar(&captureConfig.Port, "port", 0, "Application port the schema's protocol is served on")
	captureCmd.Flags().StringVar(&captureConfig.Ifaces, "ifaces", "any", "Network interfaces to monitor (supports regex), 'any' for all interfaces")
	captureCmd.Flags().StringVar(&captureConfig.File, "pcap.file", "", "Path to a pcap file to read from instead of a live interface")
	captureCmd.Flags().BoolVar(&captureConfig.IPv4Only, "ipv4", false, "Capture IPv4 traffic only")
	captureCmd.Flags().BoolVar(&captureConfig.NoPromiscuous, "no-promiscuous", false, "Don't put the interface into promiscuous mode")
	captureCmd.Flags().BoolVar(&captureConfig.Console, "console", false, "Print decoded messages to stdout")
	captureCmd.Flags().StringVar(&captureConfig.LogFile, "log.file", "schemawire.decoded.log", "Path to the decoded-message log file")
	captureCmd.Flags().IntVar(&captureConfig.LogSize, "log.size", 100, "Maximum size of the decoded-message log file in MB")
	captureCmd.Flags().IntVar(&captureConfig.LogBackups, "log.backups", 10, "Maximum number of old decoded-message log files to retain")
	captureCmd.Flags().StringVar(&captureConfig.ServerAddr, "http", "", "Address to serve /metrics, /watch and admin routes on (disabled if empty)")
	captureCmd.Flags().StringSliceVar(&captureConfig.MetricsLabels, "metrics.labels", nil,
		"Tuple dimensions to label the schemawire_engine_tuple_messages_total counter with "+
			"(source.host, source.port, destination.host, destination.port); the counter is disabled if unset")
	rootCmd.AddCommand(captureCmd)
}
