package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paiban/campsched/pkg/scheduler"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/stats"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestRegistry_RecordSchedule(t *testing.T) {
	r := NewRegistry()
	result := &scheduler.Result{
		Voyageur: true,
		Success:  true,
		Diagnostics: &scheduler.Diagnostics{
			UnmetTop5:  2,
			UnmetTop10: 5,
			Gaps:       0,
			ExcessDays: map[string]int{"Archery": 1},
			Fairness:   &stats.FairnessMetrics{SatisfactionGini: 0.12},
		},
	}
	r.RecordSchedule(result, 300*time.Millisecond)
	r.RecordRequest("POST", "/api/v1/schedule/generate", 200, 10*time.Millisecond)

	body := scrape(t, r)
	for _, want := range []string{
		`campsched_schedule_generation_total{ruleset="voyageur",status="success"} 1`,
		`campsched_unmet_preferences{band="top5"} 2`,
		`campsched_unmet_preferences{band="top10"} 5`,
		`campsched_area_excess_days{area="Archery"} 1`,
		`campsched_fairness_gini 0.12`,
		`campsched_http_requests_total{method="POST",path="/api/v1/schedule/generate",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistry_FailedRun(t *testing.T) {
	r := NewRegistry()
	r.RecordSchedule(nil, time.Second)

	if body := scrape(t, r); !strings.Contains(body, `campsched_schedule_generation_total{ruleset="tc",status="failed"} 1`) {
		t.Error("failed run should be counted")
	}
}

func TestRegistry_Sink(t *testing.T) {
	r := NewRegistry()
	sink := r.Sink()
	sink.Emit(event.Event{Kind: event.AssignmentForced})
	sink.Emit(event.Event{Kind: event.AssignmentRelaxed})
	sink.Emit(event.Event{Kind: event.AssignmentRelaxed})

	body := scrape(t, r)
	for _, want := range []string{
		"campsched_forced_placements_total 1",
		"campsched_relaxed_placements_total 2",
		`campsched_engine_events_total{kind="assignment_relaxed"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
