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

// Package transform implements the schema-declared byte-block transform
// chain applied between TCP framing and field decoding. Transforms share a
// per-connection Context; they run in a single decoding goroutine per
// connection, so Context needs no synchronization of its own.
package transform

import "github.com/packetd/schemawire/fieldvalue"

// Context is the mutable, per-connection dictionary a transform stage uses
// to hand state to a later stage (an RSA stage extracting a session key for
// an XTEA stage later in the same pipeline, for instance). Its lifetime
// spans the connection, not a single message.
type Context struct {
	values map[string]fieldvalue.Value
}

// NewContext creates an empty transform context.
func NewContext() *Context {
	return &Context{values: make(map[string]fieldvalue.Value)}
}

// Set stores a value under name, replacing any previous value.
func (c *Context) Set(name string, v fieldvalue.Value) {
	c.values[name] = v
}

// Get retrieves a previously stored value.
func (c *Context) Get(name string) (fieldvalue.Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Transform is a pure byte-block rewriting stage: (bytes, context) -> bytes.
// A transform must never panic; on any internal failure it returns the
// input unchanged (see Pipeline.Apply).
type Transform interface {
	Name() string
	Apply(in []byte, ctx *Context) []byte
}

// Pipeline is an ordered list of transforms applied in declaration order.
type Pipeline struct {
	stages []Transform
}

// NewPipeline builds a pipeline from stages in application order.
func NewPipeline(stages ...Transform) *Pipeline {
	return &Pipeline{stages: stages}
}

// Apply runs every stage over in, returning the final bytes. A panicking
// stage is treated as a transform-failure: its input is used unchanged and
// the pipeline continues with the next stage.
func (p *Pipeline) Apply(in []byte, ctx *Context) []byte {
	out := in
	for _, stage := range p.stages {
		out = safeApply(stage, out, ctx)
	}
	return out
}

func safeApply(stage Transform, in []byte, ctx *Context) (out []byte) {
	out = in
	defer func() {
		if recover() != nil {
			out = in
		}
	}()
	return stage.Apply(in, ctx)
}
