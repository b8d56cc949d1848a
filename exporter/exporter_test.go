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

package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/packetd/probed/probe"
)

func TestParseLabelFragment(t *testing.T) {
	lbs := parseLabelFragment("protocol=773, players=10, malformed")
	assert.Len(t, lbs, 2)
	assert.Equal(t, "protocol", lbs[0].Name)
	assert.Equal(t, "773", lbs[0].Value)
	assert.Equal(t, "players", lbs[1].Name)
	assert.Equal(t, "10", lbs[1].Value)
}

func TestExporter_RecordWritesDynamicMetric(t *testing.T) {
	exp := New(Config{})
	defer exp.Close()

	exp.Record(&probe.Result{
		Server:    "minecraft-prod",
		Success:   true,
		ElapsedMS: 42,
		Label:     "protocol=773, players=10",
	})

	var buf bytes.Buffer
	exp.WritePrometheus(&buf)
	out := buf.String()
	assert.Contains(t, out, "probe_result")
	assert.Contains(t, out, `server="minecraft-prod"`)
	assert.Contains(t, out, `protocol="773"`)
}
