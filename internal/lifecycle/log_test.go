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

package lifecycle

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []LifecycleEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open lifecycle log: %v", err)
	}
	defer f.Close()

	var events []LifecycleEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev LifecycleEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestLifecycleLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "lifecycle.log")
	l := NewLifecycleLogger(path, "openldap", "/srv/slapd.d")

	steps := []func() error{
		func() error { return l.LogCreate("run-1") },
		func() error { return l.LogStart("spawn") },
		func() error { return l.LogStartSuccess(4242, 120*time.Millisecond) },
		func() error { return l.LogCreateSuccess("run-1", time.Second) },
		func() error { return l.LogStop(4242) },
		func() error { return l.LogStopFailure(4242, errors.New("went away")) },
		func() error { return l.LogGone(4242, "process not found") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
	}

	events := readEvents(t, path)
	want := []string{EventCreate, EventStart, EventStartSuccess, EventCreateSuccess, EventStop, EventStopFailure, EventGone}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Event != want[i] {
			t.Errorf("event %d = %q, want %q", i, ev.Event, want[i])
		}
		if ev.Impl != "openldap" || ev.ConfigDir != "/srv/slapd.d" {
			t.Errorf("event %d missing instance fields: %+v", i, ev)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}

	if events[0].RunID != "run-1" {
		t.Errorf("create event run id = %q", events[0].RunID)
	}
	if events[2].PID != 4242 || !events[2].Success {
		t.Errorf("start_success event = %+v", events[2])
	}
	if events[5].Success || events[5].Error != "went away" {
		t.Errorf("stop_failure event = %+v", events[5])
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if mode := info.Mode() & os.ModePerm; mode != 0600 {
		t.Errorf("log mode = %04o, want 0600", mode)
	}
}

func TestLifecycleLogger_UnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	l := NewLifecycleLogger(filepath.Join(blocker, "lifecycle.log"), "openldap", "")
	if err := l.LogAlreadyRunning(1); err == nil {
		t.Error("expected error when log directory is a file")
	}
}
