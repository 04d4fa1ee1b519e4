package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samor/internal/metrics"
)

func TestNilCollectorsAreNoops(t *testing.T) {
	var c *metrics.Collectors
	assert.NotPanics(t, func() {
		c.Handshake("client", metrics.ResultOK)
		c.Frame(metrics.DirectionIn)
		c.Dropped("bad_padding")
		c.SessionOpened()
		c.SessionClosed()
	})
}

func TestCollectorsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := metrics.New(reg)

	c.Handshake("server", metrics.ResultOK)
	c.Handshake("server", metrics.ResultInvalid)
	c.Frame(metrics.DirectionOut)
	c.Frame(metrics.DirectionOut)
	c.Dropped("bad_padding")
	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()

	const want = `
# HELP samor_frames_total Encrypted data frames by direction.
# TYPE samor_frames_total counter
samor_frames_total{direction="out"} 2
# HELP samor_sessions_active Sessions that completed the handshake and are still open.
# TYPE samor_sessions_active gauge
samor_sessions_active 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want),
		"samor_frames_total", "samor_sessions_active"))

	n, err := testutil.GatherAndCount(reg, "samor_handshakes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
