package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTriggerOutcome(t *testing.T) {
	before := testutil.ToFloat64(TriggerExecutions.WithLabelValues(OutcomeRetry))
	RecordTriggerOutcome(OutcomeRetry)
	after := testutil.ToFloat64(TriggerExecutions.WithLabelValues(OutcomeRetry))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	GeneratorFallbacks.Inc()
	StartPollTimer().ObserveDuration()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"salespipe_generator_fallbacks_total", "salespipe_trigger_poll_duration_seconds"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
}
