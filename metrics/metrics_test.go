package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injoimydesign/flag-community/metrics"
	"github.com/injoimydesign/flag-community/schedule"
)

func TestRecorder_CountsAndServes(t *testing.T) {
	r := metrics.New()

	r.PlacementGenerated("independence-day")
	r.PlacementGenerated("independence-day")
	r.GenerationFailed("flag-day")
	r.Transition(schedule.ActionPlace, true)
	r.Transition(schedule.ActionPlace, false)
	r.ReminderSent()
	r.GenerationCompleted(15 * time.Millisecond)

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	names := map[string]int{}
	for _, mf := range families {
		names[mf.GetName()] = len(mf.GetMetric())
	}
	assert.Equal(t, 1, names["placements_generated_total"])
	assert.Equal(t, 1, names["placement_generation_failures_total"])
	assert.Equal(t, 2, names["placement_transitions_total"])
	assert.Equal(t, 1, names["reminders_sent_total"])

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `placements_generated_total{holiday="independence-day"} 2`)
	assert.Contains(t, body, `placement_transitions_total{action="place",result="error"} 1`)
	assert.Contains(t, body, "placement_generation_duration_seconds_count 1")
}
