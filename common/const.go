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

package common

const (
	// App is the process name used as the default Prometheus metric namespace.
	App = "probed"

	// Version is the build version, overridden at link time via buildinfo.
	Version = "v0.0.1"

	// ReadWriteBlockSize bounds a single incremental read off a TCP stream
	// transport. Reading the whole response in one shot would require sizing
	// a buffer for the worst case; reading in fixed chunks keeps memory flat
	// across hundreds of concurrent probes.
	ReadWriteBlockSize = 4096
)
