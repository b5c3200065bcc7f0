package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classforge/backend/internal/models"
)

// PresenceRatio is the fraction of the host's connected time a student must
// reach to be marked present.
const PresenceRatio = 0.75

// IntegrityError marks a data-integrity precondition failure (missing cohort,
// instructor, or instructor email). It is surfaced to the caller and never
// retried.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("attendance integrity: %s", e.Reason)
}

// Compute converts reconciled participant durations into one verdict per
// invited student.
//
// The host is always the session's assigned instructor; it is never inferred
// from telemetry (e.g. as the longest-connected participant), since that
// inference can crown a student as host when the instructor drops early.
// Threshold = host duration × PresenceRatio. Roster entries with no telemetry
// become absent records with zero duration: a student who never joined does
// not appear in provider telemetry at all.
func Compute(session *models.Session, participants []ParticipantRecord) ([]models.AttendanceRecord, error) {
	if session.BatchID == uuid.Nil {
		return nil, &IntegrityError{Reason: "session has no cohort"}
	}
	hostEmail := strings.ToLower(strings.TrimSpace(session.CreatorEmail))
	if hostEmail == "" {
		return nil, &IntegrityError{Reason: "session has no instructor email"}
	}

	var hostDuration int64
	for _, p := range participants {
		if p.Identity == hostEmail {
			hostDuration = p.DurationSeconds
			break
		}
	}
	threshold := float64(hostDuration) * PresenceRatio

	now := time.Now()
	records := make([]models.AttendanceRecord, 0, len(participants)+len(session.InvitedRoster))
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.Identity == hostEmail {
			// the instructor anchors the threshold but is not an invited student
			continue
		}
		verdict := models.VerdictAbsent
		// without host telemetry the bar cannot be established; nobody clears it
		if hostDuration > 0 && float64(p.DurationSeconds) >= threshold {
			verdict = models.VerdictPresent
		}
		records = append(records, models.AttendanceRecord{
			SessionID:       session.ID,
			Email:           p.Identity,
			DurationSeconds: p.DurationSeconds,
			Verdict:         verdict,
			ComputedAt:      now,
		})
		seen[p.Identity] = true
	}

	for _, entry := range session.InvitedRoster {
		email := strings.ToLower(strings.TrimSpace(entry.Email))
		if email == "" || email == hostEmail || seen[email] {
			continue
		}
		records = append(records, models.AttendanceRecord{
			SessionID:       session.ID,
			Email:           email,
			DurationSeconds: 0,
			Verdict:         models.VerdictAbsent,
			ComputedAt:      now,
		})
		seen[email] = true
	}

	return records, nil
}
