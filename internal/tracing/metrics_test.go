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

package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLifecycleMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewLifecycleMetrics(mp)
	require.NoError(t, err)

	m.RecordStart(ctx, "openldap", 120*time.Millisecond, nil)
	m.RecordStart(ctx, "openldap", 30*time.Second, errBoom)
	m.RecordStop(ctx, "openldap", 50*time.Millisecond, nil)
	m.RecordBootstrap(ctx, "openldap", 2*time.Second, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	counts := map[string]uint64{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, metric.Name)
		for _, dp := range hist.DataPoints {
			counts[metric.Name] += dp.Count
		}
	}

	assert.Equal(t, uint64(2), counts["dirsvc_start_duration_seconds"])
	assert.Equal(t, uint64(1), counts["dirsvc_stop_duration_seconds"])
	assert.Equal(t, uint64(1), counts["dirsvc_bootstrap_duration_seconds"])
}

func TestLifecycleMetrics_Nil(t *testing.T) {
	var m *LifecycleMetrics
	assert.NotPanics(t, func() {
		m.RecordStart(context.Background(), "openldap", time.Second, nil)
		m.RecordStop(context.Background(), "openldap", time.Second, nil)
		m.RecordBootstrap(context.Background(), "openldap", time.Second, nil)
	})
}
