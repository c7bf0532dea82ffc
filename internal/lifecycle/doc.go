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

/*
Package lifecycle holds the process mechanics behind a supervised daemon:
spawning, readiness detection, liveness probes, reaping and PID files.
It knows nothing about any particular daemon.

# Spawning and Readiness

A daemon is started as a child with stdout and stderr joined on one pipe,
then watched until a marker line appears:

	child, err := lifecycle.NewSpawner().Spawn("slapd", args)
	if err != nil {
	    // Handle error
	}
	out, err := lifecycle.WaitForMarker(ctx, child, lifecycle.ReadinessOptions{
	    Marker:       "slapd starting",
	    PollInterval: 10 * time.Millisecond,
	    Timeout:      30 * time.Second,
	})
	child.CloseOutput()

A child that exits before the marker yields a *ChildExitError with the
captured output. No goroutine waits on the child: exit status is collected
with Reap or TryReap, so an exited daemon stays a zombie until a probe
notices it.

# Process Operations

	if !lifecycle.IsProcessRunning(pid) || lifecycle.IsZombie(pid) {
	    // gone
	}
	err := lifecycle.Terminate(ctx, pid, 30*time.Second)

Terminate reaps children directly and polls for processes it cannot wait
for, such as a daemon started by an earlier invocation.

# Lifecycle Logging

Lifecycle events are appended to a JSON-lines audit file:

	logger := lifecycle.NewLifecycleLogger(path, "openldap", configDir)
	logger.LogStartSuccess(pid, time.Since(start))
*/
package lifecycle
