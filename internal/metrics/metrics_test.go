package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLLMCall("cost", "success")
	c.RecordLLMCall("cost", "success")
	c.RecordExtractionTier("braces")
	c.RecordNotificationCreated("join")
	c.RecordFanOutFailure("write")
	c.SetActiveTripWatches(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.llmCalls.WithLabelValues("cost", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.extractionTier.WithLabelValues("braces")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.tripWatches))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tripplanner_notifications_created_total")
}

func TestNop(t *testing.T) {
	r := Nop()
	r.RecordLLMCall("itinerary", "error")
	r.SetActiveNotificationSubscriptions(1)
}
