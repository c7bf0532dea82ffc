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

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	dirsvcerrors "github.com/tombee/dirsvc/pkg/errors"
)

func TestRecordStart(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		result string
	}{
		{name: "spawn success", mode: "spawn", result: ResultSuccess},
		{name: "spawn timeout", mode: "spawn", result: "startup_timeout"},
		{name: "exec failure", mode: "exec", result: "startup_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := prometheus.Labels{"impl": "openldap", "mode": tt.mode, "result": tt.result}
			initialCount := testutil.ToFloat64(startsTotal.With(labels))

			RecordStart("openldap", tt.mode, tt.result)

			newCount := testutil.ToFloat64(startsTotal.With(labels))
			if newCount != initialCount+1 {
				t.Errorf("expected count to increment by 1, got initial=%f, new=%f", initialCount, newCount)
			}
		})
	}
}

func TestRecordStopAndGone_MultipleIncrements(t *testing.T) {
	stopLabels := prometheus.Labels{"impl": "openldap", "result": ResultSuccess}
	goneLabels := prometheus.Labels{"impl": "openldap", "reason": "zombie"}
	initialStops := testutil.ToFloat64(stopsTotal.With(stopLabels))
	initialGone := testutil.ToFloat64(goneTotal.With(goneLabels))

	for i := 0; i < 3; i++ {
		RecordStop("openldap", ResultSuccess)
		RecordGone("openldap", "zombie")
	}

	if got := testutil.ToFloat64(stopsTotal.With(stopLabels)); got != initialStops+3 {
		t.Errorf("stops = %f, want %f", got, initialStops+3)
	}
	if got := testutil.ToFloat64(goneTotal.With(goneLabels)); got != initialGone+3 {
		t.Errorf("gone = %f, want %f", got, initialGone+3)
	}
}

func TestResultOf(t *testing.T) {
	if got := ResultOf(nil); got != ResultSuccess {
		t.Errorf("ResultOf(nil) = %q", got)
	}
	if got := ResultOf(errors.New("boom")); got != "internal" {
		t.Errorf("ResultOf(plain) = %q, want internal", got)
	}
	verr := &dirsvcerrors.ValidationError{Field: "suffix", Message: "is required"}
	if got := ResultOf(verr); got != "validation" {
		t.Errorf("ResultOf(validation) = %q", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	RecordBootstrap("openldap", ResultSuccess)

	path := filepath.Join(t.TempDir(), "dirsvc.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "dirsvc_bootstraps_total") {
		t.Errorf("textfile missing bootstrap counter:\n%s", data)
	}
}
