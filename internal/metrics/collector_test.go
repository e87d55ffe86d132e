package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGather(t *testing.T) {
	ActiveNodes.Set(3)
	SessionsOpened.Inc()
	SessionsClosed.WithLabelValues("liveness").Inc()
	ExecutionsTotal.Inc()
	ReportsPersisted.Add(2)
	SignatureVerificationFailures.WithLabelValues("stale_timestamp").Inc()
	TestsExecuted.WithLabelValues("pass").Inc()

	families, err := Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	assert.True(t, names["secchiware_c2_active_nodes"])
	assert.True(t, names["secchiware_signing_verification_failures_total"])
	assert.True(t, names["secchiware_node_tests_executed_total"])
}
