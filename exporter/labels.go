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
	"strings"

	"github.com/packetd/probed/internal/labels"
)

// parseLabelFragment turns a rendered RETURN template's output (the
// glossary's "label fragment": comma-separated key=value pairs) into a
// Labels set. A segment without an '=' is dropped rather than rejected,
// since a probe's result is still worth recording even if a script
// author's RETURN template doesn't follow the key=value convention.
func parseLabelFragment(fragment string) labels.Labels {
	var lbs labels.Labels
	for _, part := range strings.Split(fragment, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		lbs = append(lbs, labelPair(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])))
	}
	return lbs
}

func labelPair(name, value string) labels.Label {
	return labels.Label{Name: name, Value: value}
}
