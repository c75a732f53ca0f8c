package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Ticks.Inc()
	m.Apples.Add(2)
	m.Inputs.WithLabelValues("false").Inc()

	require.Equal(t, float64(1), testutil.ToFloat64(m.Ticks))
	require.Equal(t, float64(2), testutil.ToFloat64(m.Apples))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Inputs.WithLabelValues("false")))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	require.Panics(t, func() { New(reg) })
}
