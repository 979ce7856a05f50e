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

package transform

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/packetd/schemawire/schema"
)

// Build constructs a Pipeline from the schema's declared transform chain.
// Each stage's raw options map is decoded into its typed options struct via
// mapstructure, matching the schema's kind string to a constructor.
func Build(defs []schema.TransformDef) (*Pipeline, error) {
	stages := make([]Transform, 0, len(defs))
	for _, def := range defs {
		stage, err := build(def)
		if err != nil {
			return nil, errors.Wrapf(err, "transform %q", def.Kind)
		}
		stages = append(stages, stage)
	}
	return NewPipeline(stages...), nil
}

func build(def schema.TransformDef) (Transform, error) {
	switch def.Kind {
	case "xtea":
		var opts XTEAOptions
		if err := decodeOptions(def.Options, &opts); err != nil {
			return nil, err
		}
		return NewXTEATransform(opts), nil

	case "raw_rsa":
		var opts RawRSAOptions
		if err := decodeOptions(def.Options, &opts); err != nil {
			return nil, err
		}
		return NewRawRSATransform(opts), nil

	default:
		return nil, errors.Errorf("unknown transform kind %q", def.Kind)
	}
}

func decodeOptions(raw map[string]any, dst any) error {
	if raw == nil {
		return nil
	}
	return mapstructure.Decode(raw, dst)
}
