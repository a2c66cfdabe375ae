// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// gatherMetric finds one metric family in the default registry.
func gatherMetric(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestObserveQuerySuccess(t *testing.T) {
	ObserveQuery("name", time.Now().Add(-time.Millisecond), 7, nil)

	mf := gatherMetric(t, "imdbsearch_query_duration_seconds")
	require.NotNil(t, mf)
	require.NotEmpty(t, mf.GetMetric())

	mf = gatherMetric(t, "imdbsearch_query_results")
	require.NotNil(t, mf)
}

func TestObserveQueryError(t *testing.T) {
	before := counterValue(t, "imdbsearch_query_errors_total", "exhaustive")
	ObserveQuery("exhaustive", time.Now(), 0, errors.New("scan failed"))
	after := counterValue(t, "imdbsearch_query_errors_total", "exhaustive")
	require.Equal(t, before+1, after)
}

func counterValue(t *testing.T, name, label string) float64 {
	t.Helper()
	mf := gatherMetric(t, name)
	if mf == nil {
		return 0
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetValue() == label {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestGaugesSettable(t *testing.T) {
	IndexDocuments.Set(12345)
	mf := gatherMetric(t, "imdbsearch_index_documents")
	require.NotNil(t, mf)
	require.Equal(t, float64(12345), mf.GetMetric()[0].GetGauge().GetValue())
}
