package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classforge/backend/internal/models"
)

func testSession() *models.Session {
	return &models.Session{
		ID:           uuid.New(),
		BatchID:      uuid.New(),
		BootcampID:   uuid.New(),
		CreatorEmail: "teacher@example.com",
		StartsAt:     time.Now().Add(-2 * time.Hour),
		EndsAt:       time.Now().Add(-1 * time.Hour),
	}
}

func verdictOf(t *testing.T, records []models.AttendanceRecord, email string) string {
	t.Helper()
	for _, rec := range records {
		if rec.Email == email {
			return rec.Verdict
		}
	}
	t.Fatalf("no record for %s", email)
	return ""
}

func TestComputeThresholdBoundary(t *testing.T) {
	// host 400s, threshold 300s: exactly 300 is present, 299 is not
	session := testSession()
	records, err := Compute(session, []ParticipantRecord{
		{Identity: "teacher@example.com", DurationSeconds: 400},
		{Identity: "onbar@example.com", DurationSeconds: 300},
		{Identity: "under@example.com", DurationSeconds: 299},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records (host excluded), got %d", len(records))
	}
	if v := verdictOf(t, records, "onbar@example.com"); v != models.VerdictPresent {
		t.Errorf("onbar verdict = %s, want present", v)
	}
	if v := verdictOf(t, records, "under@example.com"); v != models.VerdictAbsent {
		t.Errorf("under verdict = %s, want absent", v)
	}
}

func TestComputeNoHostTelemetryMarksEveryoneAbsent(t *testing.T) {
	session := testSession()
	records, err := Compute(session, []ParticipantRecord{
		{Identity: "a@example.com", DurationSeconds: 5000},
		{Identity: "b@example.com", DurationSeconds: 10},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, rec := range records {
		if rec.Verdict != models.VerdictAbsent {
			t.Errorf("%s verdict = %s, want absent without host telemetry", rec.Email, rec.Verdict)
		}
	}
}

func TestComputeRosterNoShows(t *testing.T) {
	session := testSession()
	session.InvitedRoster = []models.RosterEntry{
		{UserID: uuid.New(), Email: "joined@example.com"},
		{UserID: uuid.New(), Email: "ghost@example.com"},
	}
	records, err := Compute(session, []ParticipantRecord{
		{Identity: "teacher@example.com", DurationSeconds: 400},
		{Identity: "joined@example.com", DurationSeconds: 350},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if v := verdictOf(t, records, "joined@example.com"); v != models.VerdictPresent {
		t.Errorf("joined verdict = %s", v)
	}
	var ghost *models.AttendanceRecord
	for i := range records {
		if records[i].Email == "ghost@example.com" {
			ghost = &records[i]
		}
	}
	if ghost == nil {
		t.Fatal("no record synthesized for roster no-show")
	}
	if ghost.Verdict != models.VerdictAbsent || ghost.DurationSeconds != 0 {
		t.Errorf("ghost = %s/%ds, want absent/0s", ghost.Verdict, ghost.DurationSeconds)
	}
}

func TestComputeRosterDoesNotDuplicateParticipants(t *testing.T) {
	session := testSession()
	session.InvitedRoster = []models.RosterEntry{
		{UserID: uuid.New(), Email: "Joined@Example.com"}, // case-insensitive match
	}
	records, err := Compute(session, []ParticipantRecord{
		{Identity: "teacher@example.com", DurationSeconds: 400},
		{Identity: "joined@example.com", DurationSeconds: 350},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	count := 0
	for _, rec := range records {
		if rec.Email == "joined@example.com" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("joined@example.com appears %d times, want 1", count)
	}
}

func TestComputeIntegrityFailures(t *testing.T) {
	noBatch := testSession()
	noBatch.BatchID = uuid.Nil
	if _, err := Compute(noBatch, nil); err == nil {
		t.Error("expected error for session without cohort")
	} else {
		var integrity *IntegrityError
		if !errors.As(err, &integrity) {
			t.Errorf("error type = %T, want IntegrityError", err)
		}
	}

	noHost := testSession()
	noHost.CreatorEmail = "  "
	var integrity *IntegrityError
	if _, err := Compute(noHost, nil); !errors.As(err, &integrity) {
		t.Errorf("expected IntegrityError for missing instructor email, got %v", err)
	}
}
