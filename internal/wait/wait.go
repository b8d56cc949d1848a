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

// Package wait supervises a long-running worker goroutine, restarting it
// after a panic instead of letting it silently die.
package wait

import (
	"context"

	"github.com/packetd/probed/internal/rescue"
)

// Until runs f until ctx is cancelled. f is expected to block internally
// (typically a select over a ticker and ctx.Done()) and return only when
// ctx is done; if f panics, the panic is recovered and f is restarted.
func Until(ctx context.Context, f func()) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			defer rescue.HandleCrash()
			f()
		}()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
