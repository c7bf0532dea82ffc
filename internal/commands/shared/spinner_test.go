// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"bytes"
	"testing"
	"time"
)

func TestSpinner_NonTTY(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinnerTo(&buf)

	s.Start("Starting slapd")
	s.Start("ignored while active")
	if d := s.Stop(); d < 0 {
		t.Errorf("negative elapsed time %v", d)
	}
	if s.Stop() != 0 {
		t.Error("second Stop should return 0")
	}
	if buf.String() != "Starting slapd\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{400 * time.Millisecond, "0s"},
		{12 * time.Second, "12s"},
		{2 * time.Minute, "2m"},
		{83 * time.Second, "1m 23s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
