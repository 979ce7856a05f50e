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

package engine

import (
	"strconv"
	"sync"

	"github.com/packetd/schemawire/common/socket"
	"github.com/packetd/schemawire/internal/labels"
)

// tupleLabelCache turns a connection tuple into the four label values
// tupleMessagesTotal expects. Every message on a connection resolves to the
// same label set, so the ordered [4]string is computed once per distinct
// set and cached by its labels.Labels hash. Each call still builds and
// hashes the label slice; the cache saves only the re-ordering into values.
type tupleLabelCache struct {
	required map[string]bool

	mu     sync.RWMutex
	values map[uint64][4]string
}

func newTupleLabelCache(required []string) *tupleLabelCache {
	m := make(map[string]bool, len(required))
	for _, r := range required {
		m[r] = true
	}
	return &tupleLabelCache{
		required: m,
		values:   make(map[uint64][4]string),
	}
}

// resolve returns [src_host, src_port, dst_host, dst_port], leaving any
// dimension not present in RequiredLabels as "".
func (c *tupleLabelCache) resolve(tuple socket.Tuple) [4]string {
	var lbs labels.Labels
	if c.required["source.host"] {
		lbs = append(lbs, labels.Label{Name: "src_host", Value: tuple.SrcIP.String()})
	}
	if c.required["source.port"] {
		lbs = append(lbs, labels.Label{Name: "src_port", Value: strconv.Itoa(int(tuple.SrcPort))})
	}
	if c.required["destination.host"] {
		lbs = append(lbs, labels.Label{Name: "dst_host", Value: tuple.DstIP.String()})
	}
	if c.required["destination.port"] {
		lbs = append(lbs, labels.Label{Name: "dst_port", Value: strconv.Itoa(int(tuple.DstPort))})
	}
	hash := lbs.Hash()

	c.mu.RLock()
	v, ok := c.values[hash]
	c.mu.RUnlock()
	if ok {
		return v
	}

	var out [4]string
	for _, l := range lbs {
		switch l.Name {
		case "src_host":
			out[0] = l.Value
		case "src_port":
			out[1] = l.Value
		case "dst_host":
			out[2] = l.Value
		case "dst_port":
			out[3] = l.Value
		}
	}

	c.mu.Lock()
	c.values[hash] = out
	c.mu.Unlock()
	return out
}
