package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *Registry {
	return newUnregistered()
}

func TestRecordMessageAdmittedIncrementsCounter(t *testing.T) {
	r := newTestRegistry()
	r.RecordMessageAdmitted("channel-a")
	assert.Equal(t, float64(1), testutil.ToFloat64(r.MessagesAdmitted.WithLabelValues("channel-a")))
}

func TestSetChannelReputationUpdatesGauge(t *testing.T) {
	r := newTestRegistry()
	r.SetChannelReputation("channel-a", "Elite", 95.0)
	assert.Equal(t, 95.0, testutil.ToFloat64(r.ChannelReputation.WithLabelValues("channel-a", "Elite")))
}

func TestHandlerServesMetricsEndpoint(t *testing.T) {
	r := NewRegistry()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}
