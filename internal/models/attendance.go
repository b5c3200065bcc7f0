package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendance verdicts.
const (
	VerdictPresent = "present"
	VerdictAbsent  = "absent"
)

// AttendanceRecord is one row per session per invited student. The full set
// for a session is replaced wholesale each time attendance is computed.
type AttendanceRecord struct {
	ID              uuid.UUID `json:"id"`
	SessionID       uuid.UUID `json:"session_id"`
	Email           string    `json:"email"`
	DurationSeconds int64     `json:"duration_seconds"`
	Verdict         string    `json:"verdict"`
	ComputedAt      time.Time `json:"computed_at"`
}
