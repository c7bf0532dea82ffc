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

// Package metrics holds the Prometheus counters for service lifecycle
// operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dirsvcerrors "github.com/tombee/dirsvc/pkg/errors"
)

// ResultSuccess is the result label of an operation that returned no error.
const ResultSuccess = "success"

var (
	startsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsvc_starts_total",
			Help: "Total daemon start attempts by implementation, launch mode and result",
		},
		[]string{"impl", "mode", "result"},
	)

	stopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsvc_stops_total",
			Help: "Total daemon stop attempts by implementation and result",
		},
		[]string{"impl", "result"},
	)

	goneTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsvc_gone_total",
			Help: "Total daemons found gone without being stopped, by reason",
		},
		[]string{"impl", "reason"},
	)

	bootstrapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsvc_bootstraps_total",
			Help: "Total instance bootstraps by implementation and result",
		},
		[]string{"impl", "result"},
	)
)

// RecordStart counts a start attempt. result is ResultSuccess or an error
// type, see ResultOf.
func RecordStart(impl, mode, result string) {
	startsTotal.WithLabelValues(impl, mode, result).Inc()
}

// RecordStop counts a stop attempt.
func RecordStop(impl, result string) {
	stopsTotal.WithLabelValues(impl, result).Inc()
}

// RecordGone counts a daemon that disappeared behind the supervisor's back.
func RecordGone(impl, reason string) {
	goneTotal.WithLabelValues(impl, reason).Inc()
}

// RecordBootstrap counts a CreateBasic run.
func RecordBootstrap(impl, result string) {
	bootstrapsTotal.WithLabelValues(impl, result).Inc()
}

// ResultOf maps an operation error to a result label.
func ResultOf(err error) string {
	if err == nil {
		return ResultSuccess
	}
	return dirsvcerrors.TypeOf(err)
}

// WriteTextfile writes every metric in the default registry to path in the
// node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
