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

package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileBPFFilter(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		want string
	}{
		{
			name: "port and host",
			conf: Config{Port: 7171, Host: "10.0.0.1"},
			want: "(tcp and host 10.0.0.1 and port 7171)",
		},
		{
			name: "port only",
			conf: Config{Port: 80},
			want: "(tcp and port 80)",
		},
		{
			name: "no port configured",
			conf: Config{Host: "10.0.0.1"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.conf.CompileBPFFilter()
			assert.Equal(t, tt.want, got)
		})
	}
}
