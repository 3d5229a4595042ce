package middleware_test

import (
	"testing"

	"github.com/NeuralTrust/EdgeRouter/pkg/infra/prometheus"
	"github.com/stretchr/testify/require"
)

func requestCount(t *testing.T, route, method, status string) float64 {
	t.Helper()
	families, err := prometheus.Registry().Gather()
	require.NoError(t, err)

	want := map[string]string{"route": route, "method": method, "status": status}
	for _, mf := range families {
		if mf.GetName() != "edge_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if want[lp.GetName()] == lp.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
