package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(XPAwardedTotal.WithLabelValues("interaction"))
	XPAwardedTotal.WithLabelValues("interaction").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(XPAwardedTotal.WithLabelValues("interaction")))

	before = testutil.ToFloat64(CASRetriesTotal)
	CASRetriesTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CASRetriesTotal))
}
