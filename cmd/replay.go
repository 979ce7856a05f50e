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
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/packetd/schemawire/common"
	"github.com/packetd/schemawire/encoder"
	"github.com/packetd/schemawire/fieldvalue"
	"github.com/packetd/schemawire/logformat"
	"github.com/packetd/schemawire/replay"
	"github.com/packetd/schemawire/schema"
)

type replayCmdConfig struct {
	Schema  string
	Log     string
	Target  string
	Mode    string
	Timeout time.Duration
	Speed   float64
	Sets    []string
}

var replayConfig replayCmdConfig

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a captured log's SEND-direction messages against a live endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := schema.Load(replayConfig.Schema)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load schema: %v\n", err)
			os.Exit(1)
		}

		f, err := os.Open(replayConfig.Log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		records, err := logformat.ReadLog(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse log: %v\n", err)
			os.Exit(1)
		}

		overrides, err := parseOverrides(replayConfig.Sets)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse --set: %v\n", err)
			os.Exit(1)
		}

		mode := replay.Mode(replayConfig.Mode)
		switch mode {
		case replay.ModeTiming, replay.ModeResponse, replay.ModeHybrid:
		default:
			fmt.Fprintf(os.Stderr, "invalid --mode %q: must be timing, response or hybrid\n", replayConfig.Mode)
			os.Exit(1)
		}

		enc := encoder.New(s)
		driver := replay.New(enc, records, mode, replayConfig.Timeout, replayConfig.Speed, overrides)
		driver.OnEvent(func(msg string) {
			fmt.Println(msg)
		})

		conn, err := replay.Dial(replayConfig.Target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to dial %s: %v\n", replayConfig.Target, err)
			os.Exit(1)
		}

		summary, err := driver.Run(conn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("replay done: sent=%d received=%d\n", summary.Sent, summary.Received)
	},
	Example: "# schemawire replay --schema proto.json --log capture.log --target 127.0.0.1:7171 --mode hybrid --set seq=42",
}

// parseOverrides turns "field=value" flags into a field value map, with
// spf13/cast doing the loose-typed numeric/bool/string guessing the same way
// common.Options does for config values read off the command line.
func parseOverrides(sets []string) (fieldvalue.Value, error) {
	if len(sets) == 0 {
		return fieldvalue.Value{}, nil
	}

	opts := common.NewOptions()
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			return fieldvalue.Value{}, fmt.Errorf("invalid --set %q, expected field=value", s)
		}
		opts.Merge(k, v)
	}

	result := fieldvalue.NewMap()
	for k, v := range opts {
		result.Set(k, guessFieldValue(cast.ToString(v)))
	}
	return result, nil
}

func guessFieldValue(raw string) fieldvalue.Value {
	if n, err := cast.ToInt64E(raw); err == nil {
		return fieldvalue.I64(n)
	}
	if f, err := cast.ToFloat64E(raw); err == nil {
		return fieldvalue.F64(f)
	}
	if b, err := cast.ToBoolE(raw); err == nil && (raw == "true" || raw == "false") {
		return fieldvalue.Bool(b)
	}
	return fieldvalue.String(raw)
}

func init() {
	replayCmd.Flags().StringVar(&replayConfig.Schema, "schema", "", "Path to the JSON protocol schema (required)")
	replayCmd.Flags().StringVar(&replayConfig.Log, "log", "", "Path to a previously captured decoded-message log (required)")
	replayCmd.Flags().StringVar(&replayConfig.Target, "target", "", "Address to replay against, host:port (required)")
	replayCmd.Flags().StringVar(&replayConfig.Mode, "mode", "timing", "Pacing mode: timing, response or hybrid")
	replayCmd.Flags().DurationVar(&replayConfig.Timeout, "timeout", 2*time.Second, "Per-message response wait in response/hybrid mode")
	replayCmd.Flags().Float64Var(&replayConfig.Speed, "speed", 1.0, "Timing playback speed multiplier; >1 plays faster")
	replayCmd.Flags().StringArrayVar(&replayConfig.Sets, "set", nil, "Override a field's value for every replayed message, field=value, repeatable")
	replayCmd.MarkFlagRequired("schema")
	replayCmd.MarkFlagRequired("log")
	replayCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(replayCmd)
}
