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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ErrReadinessTimeout is returned when the ready marker does not appear in time.
var ErrReadinessTimeout = errors.New("readiness timeout")

// DefaultPollInterval is the output polling interval used when none is set.
const DefaultPollInterval = 10 * time.Millisecond

// ReadinessOptions configures WaitForMarker.
type ReadinessOptions struct {
	// Marker is the substring that signals the daemon is ready.
	Marker string

	// PollInterval bounds each read attempt and the exit check cadence.
	PollInterval time.Duration

	// Timeout bounds the whole wait. Zero means no bound beyond ctx.
	Timeout time.Duration

	// OnLine is called for each complete output line, if set.
	OnLine func(line string)
}

// ChildExitError reports a child that exited before it became ready.
type ChildExitError struct {
	PID      int
	ExitCode int
	Output   string
}

// Error implements the error interface.
func (e *ChildExitError) Error() string {
	return fmt.Sprintf("process %d exited with code %d before becoming ready", e.PID, e.ExitCode)
}

// WaitForMarker reads the child's output until a line containing the marker
// appears. After the marker it waits one more poll interval and returns
// the output captured so far. The output pipe is left open; callers close it
// with Child.CloseOutput.
//
// If the child exits first, or exits non-zero during that last interval, a
// *ChildExitError carrying all output is returned and the child has been
// reaped. On timeout or cancellation the
// error wraps ErrReadinessTimeout or the context error and the child is left
// running for the caller to kill.
func WaitForMarker(ctx context.Context, child *Child, opts ReadinessOptions) (string, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	w := &lineWatcher{marker: []byte(opts.Marker), onLine: opts.OnLine}
	buf := make([]byte, 4096)
	eof := child.Output == nil

	for {
		if !eof {
			if err := child.Output.SetReadDeadline(time.Now().Add(interval)); err != nil {
				return w.output(), fmt.Errorf("failed to set read deadline: %w", err)
			}
			n, err := child.Output.Read(buf)
			w.feed(buf[:n])
			switch {
			case err == nil, errors.Is(err, os.ErrDeadlineExceeded):
			case errors.Is(err, io.EOF):
				eof = true
			default:
				return w.output(), fmt.Errorf("failed to read process output: %w", err)
			}
		} else if err := sleepCtx(ctx, interval); err != nil {
			return w.output(), readinessErr(err)
		}

		if w.ready {
			if err := sleepCtx(ctx, interval); err != nil {
				return w.output(), readinessErr(err)
			}
			// A launcher that detached its daemon exits 0 after the marker.
			exited, code, err := TryReap(child.PID)
			if err != nil && !errors.Is(err, ErrNotChild) {
				return w.output(), err
			}
			if exited && code != 0 {
				exitErr := childExited(child, w, code, interval)
				return exitErr.Output, exitErr
			}
			return w.output(), nil
		}

		exited, code, err := TryReap(child.PID)
		if err != nil && !errors.Is(err, ErrNotChild) {
			return w.output(), err
		}
		if exited {
			exitErr := childExited(child, w, code, interval)
			return exitErr.Output, exitErr
		}

		if err := ctx.Err(); err != nil {
			return w.output(), readinessErr(err)
		}
	}
}

// childExited collects the rest of the output of a reaped child.
func childExited(child *Child, w *lineWatcher, code int, interval time.Duration) *ChildExitError {
	if child.Output != nil {
		drain(child.Output, w, interval)
	}
	w.flush()
	return &ChildExitError{PID: child.PID, ExitCode: code, Output: w.output()}
}

func readinessErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrReadinessTimeout, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// drain reads whatever the exited child left in the pipe.
func drain(f *os.File, w *lineWatcher, interval time.Duration) {
	buf := make([]byte, 4096)
	for {
		if err := f.SetReadDeadline(time.Now().Add(interval)); err != nil {
			return
		}
		n, err := f.Read(buf)
		w.feed(buf[:n])
		if err != nil {
			return
		}
	}
}

// lineWatcher splits output into lines and looks for the marker. Partial
// lines are kept until their newline arrives.
type lineWatcher struct {
	marker  []byte
	onLine  func(string)
	pending []byte
	all     strings.Builder
	ready   bool
}

func (w *lineWatcher) feed(p []byte) {
	if len(p) == 0 {
		return
	}
	w.all.Write(p)
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.line(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	if len(w.marker) > 0 && bytes.Contains(w.pending, w.marker) {
		w.ready = true
	}
}

func (w *lineWatcher) line(l []byte) {
	if len(w.marker) > 0 && bytes.Contains(l, w.marker) {
		w.ready = true
	}
	if w.onLine != nil {
		w.onLine(strings.TrimRight(string(l), "\r"))
	}
}

func (w *lineWatcher) flush() {
	if len(w.pending) > 0 {
		w.line(w.pending)
		w.pending = nil
	}
}

func (w *lineWatcher) output() string {
	return w.all.String()
}
