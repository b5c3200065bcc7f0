package attendance

import (
	"context"
	"testing"

	"github.com/classforge/backend/internal/zoom"
)

type fakeConferenceAPI struct {
	instances []zoom.MeetingInstance
	reports   map[string][]zoom.Participant
}

func (f *fakeConferenceAPI) ListPastInstances(_ context.Context, _ string) ([]zoom.MeetingInstance, error) {
	return f.instances, nil
}

func (f *fakeConferenceAPI) ParticipantReport(_ context.Context, instanceUUID string) ([]zoom.Participant, error) {
	return f.reports[instanceUUID], nil
}

func TestAggregateMergesReconnectsWithinInstance(t *testing.T) {
	api := &fakeConferenceAPI{
		instances: []zoom.MeetingInstance{{UUID: "inst-1"}},
		reports: map[string][]zoom.Participant{
			"inst-1": {
				{Name: "Amy", UserEmail: "amy@example.com", Duration: 120},
				{Name: "Amy", UserEmail: "amy@example.com", Duration: 80},
			},
		},
	}
	agg := NewAggregator(api, nil)

	out, err := agg.Aggregate(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(out))
	}
	if out[0].Identity != "amy@example.com" {
		t.Errorf("identity = %q", out[0].Identity)
	}
	if out[0].DurationSeconds != 200 {
		t.Errorf("duration = %d, want 200", out[0].DurationSeconds)
	}
}

func TestAggregateCrossInstanceKeepsCanonicalAndAddsMissing(t *testing.T) {
	// inst-2 has the most distinct identities, so it is canonical; x from
	// inst-1 is added, but y's inst-1 duration must not be summed in.
	api := &fakeConferenceAPI{
		instances: []zoom.MeetingInstance{{UUID: "inst-1"}, {UUID: "inst-2"}},
		reports: map[string][]zoom.Participant{
			"inst-1": {
				{UserEmail: "y@example.com", Duration: 50},
			},
			"inst-2": {
				{UserEmail: "y@example.com", Duration: 300},
				{UserEmail: "z@example.com", Duration: 280},
			},
		},
	}
	agg := NewAggregator(api, nil)

	out, err := agg.Aggregate(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got := make(map[string]int64, len(out))
	for _, rec := range out {
		got[rec.Identity] = rec.DurationSeconds
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 participants, got %v", got)
	}
	if got["y@example.com"] != 300 {
		t.Errorf("y duration = %d, want canonical 300", got["y@example.com"])
	}
	if got["z@example.com"] != 280 {
		t.Errorf("z duration = %d, want 280", got["z@example.com"])
	}
}

func TestAggregateAddsIdentityOnlySeenInRestart(t *testing.T) {
	api := &fakeConferenceAPI{
		instances: []zoom.MeetingInstance{{UUID: "inst-1"}, {UUID: "inst-2"}},
		reports: map[string][]zoom.Participant{
			"inst-1": {
				{UserEmail: "x@example.com", Duration: 10},
				{UserEmail: "y@example.com", Duration: 20},
			},
			"inst-2": {
				{UserEmail: "y@example.com", Duration: 200},
				{UserEmail: "z@example.com", Duration: 150},
			},
		},
	}
	agg := NewAggregator(api, nil)

	out, err := agg.Aggregate(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got := make(map[string]int64, len(out))
	for _, rec := range out {
		got[rec.Identity] = rec.DurationSeconds
	}
	want := map[string]int64{"x@example.com": 10, "y@example.com": 20, "z@example.com": 150}
	// inst-1 and inst-2 both have 2 identities; the first wins ties, so
	// inst-1 is canonical and z joins from the restart.
	for id, d := range want {
		if got[id] != d {
			t.Errorf("%s duration = %d, want %d", id, got[id], d)
		}
	}
	if len(got) != len(want) {
		t.Errorf("participants = %v", got)
	}
}

func TestAggregateFallsBackToNameIdentity(t *testing.T) {
	api := &fakeConferenceAPI{
		instances: []zoom.MeetingInstance{{UUID: "inst-1"}},
		reports: map[string][]zoom.Participant{
			"inst-1": {
				{Name: "Phone Caller", UserEmail: "", Duration: 60},
				{Name: "Phone Caller", UserEmail: "", Duration: 40},
			},
		},
	}
	agg := NewAggregator(api, nil)

	out, err := agg.Aggregate(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(out) != 1 || out[0].Identity != "Phone Caller" || out[0].DurationSeconds != 100 {
		t.Errorf("got %+v", out)
	}
}

func TestAggregateNoInstances(t *testing.T) {
	agg := NewAggregator(&fakeConferenceAPI{}, nil)
	out, err := agg.Aggregate(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %v", out)
	}
}
