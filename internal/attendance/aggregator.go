package attendance

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/classforge/backend/internal/zoom"
)

// ParticipantRecord is one reconciled {identity, duration} tuple for a logical
// session. It is ephemeral: built from provider telemetry, consumed by the
// calculator, never persisted.
type ParticipantRecord struct {
	Identity        string // lowercased email, or display name when no email was reported
	Email           string
	Name            string
	DurationSeconds int64
}

// ConferenceAPI is the slice of the conferencing provider the aggregator needs.
type ConferenceAPI interface {
	ListPastInstances(ctx context.Context, meetingID string) ([]zoom.MeetingInstance, error)
	ParticipantReport(ctx context.Context, instanceUUID string) ([]zoom.Participant, error)
}

// Aggregator reconciles raw join/leave telemetry for a session whose meeting
// may have been split into several provider-side instances.
type Aggregator struct {
	api    ConferenceAPI
	logger *zap.Logger
}

// NewAggregator creates a participant aggregator.
func NewAggregator(api ConferenceAPI, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{api: api, logger: logger}
}

// Aggregate returns one record per identity for the logical session behind
// meetingID.
//
// Reconnects within one instance are merged by summing durations. Across
// instances, the instance with the most distinct identities is taken as the
// canonical report and other instances contribute only identities missing
// from it: summing across instances would double-count ordinary reconnects,
// while keeping only the largest instance would drop a student who joined
// nothing but a restart.
func (a *Aggregator) Aggregate(ctx context.Context, meetingID string) ([]ParticipantRecord, error) {
	instances, err := a.api.ListPastInstances(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		a.logger.Warn("no past instances for meeting", zap.String("meeting_id", meetingID))
		return nil, nil
	}

	merged := make([]map[string]ParticipantRecord, 0, len(instances))
	for _, inst := range instances {
		report, err := a.api.ParticipantReport(ctx, inst.UUID)
		if err != nil {
			return nil, err
		}
		merged = append(merged, consolidateInstance(report))
	}

	canonical := 0
	for i, m := range merged {
		if len(m) > len(merged[canonical]) {
			canonical = i
		}
	}

	result := make(map[string]ParticipantRecord, len(merged[canonical]))
	for id, rec := range merged[canonical] {
		result[id] = rec
	}
	for i, m := range merged {
		if i == canonical {
			continue
		}
		for id, rec := range m {
			if _, ok := result[id]; !ok {
				result[id] = rec
			}
		}
	}

	out := make([]ParticipantRecord, 0, len(result))
	for _, rec := range result {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })

	a.logger.Debug("participants aggregated",
		zap.String("meeting_id", meetingID),
		zap.Int("instances", len(instances)),
		zap.Int("participants", len(out)))
	return out, nil
}

// consolidateInstance merges the raw report of one instance by identity,
// summing durations so reconnects within a continuous call count once.
func consolidateInstance(report []zoom.Participant) map[string]ParticipantRecord {
	out := make(map[string]ParticipantRecord, len(report))
	for _, p := range report {
		id := participantIdentity(p)
		if id == "" {
			continue
		}
		rec, ok := out[id]
		if !ok {
			rec = ParticipantRecord{Identity: id, Email: strings.ToLower(p.UserEmail), Name: p.Name}
		}
		rec.DurationSeconds += p.Duration
		out[id] = rec
	}
	return out
}

func participantIdentity(p zoom.Participant) string {
	if email := strings.TrimSpace(p.UserEmail); email != "" {
		return strings.ToLower(email)
	}
	return strings.TrimSpace(p.Name)
}
