package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDispatch(t *testing.T) {
	before := testutil.ToFloat64(dispatchTotal.WithLabelValues("mobile_intent", OutcomeAccepted))
	RecordDispatch("Mobile_Intent", "accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(dispatchTotal.WithLabelValues("mobile_intent", OutcomeAccepted)))
}

func TestRecordDispatchNormalizesLabels(t *testing.T) {
	before := testutil.ToFloat64(dispatchTotal.WithLabelValues("unknown", "unknown"))
	RecordDispatch("carrier-pigeon", "lost")
	assert.Equal(t, before+1, testutil.ToFloat64(dispatchTotal.WithLabelValues("unknown", "unknown")))
}

func TestEmbeddedSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(embeddedSessionsActive)
	EmbeddedSessionStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(embeddedSessionsActive))
	EmbeddedSessionEnded()
	assert.Equal(t, before, testutil.ToFloat64(embeddedSessionsActive))
}

func TestRecordCatalogRequest(t *testing.T) {
	before := testutil.ToFloat64(catalogRequestsTotal.WithLabelValues("torrents", OutcomeOK))
	RecordCatalogRequest("torrents", OutcomeOK)
	assert.Equal(t, before+1, testutil.ToFloat64(catalogRequestsTotal.WithLabelValues("torrents", OutcomeOK)))
}
