package models

import (
	"time"

	"github.com/google/uuid"
)

// Session lifecycle statuses.
const (
	SessionStatusUpcoming  = "upcoming"
	SessionStatusOngoing   = "ongoing"
	SessionStatusCompleted = "completed"
)

// RecordingLinkNotFound marks sessions whose recording never materialized and
// is no longer expected to (older than the lookback window).
const RecordingLinkNotFound = "not found"

// RosterEntry is one invited student, snapshotted at session creation time.
type RosterEntry struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// Session is one scheduled live-class occurrence.
//
// MeetingID is the provider meeting identifier; MeetingInstanceID is the
// provider-side instance identifier that stays stable across reschedules and
// is preferred for recording lookups. IsConference distinguishes dedicated
// conferencing sessions (recording pipeline) from calendar-backed ones
// (attachment fallback).
type Session struct {
	ID                uuid.UUID     `json:"id"`
	Title             string        `json:"title"`
	MeetingID         string        `json:"meeting_id"`
	MeetingInstanceID string        `json:"meeting_instance_id,omitempty"`
	BatchID           uuid.UUID     `json:"batch_id"`
	BootcampID        uuid.UUID     `json:"bootcamp_id"`
	CreatorEmail      string        `json:"creator_email"`
	StartsAt          time.Time     `json:"starts_at"`
	EndsAt            time.Time     `json:"ends_at"`
	Status            string        `json:"status"`
	RecordingLink     string        `json:"recording_link,omitempty"`
	InvitedRoster     []RosterEntry `json:"invited_roster"`
	IsConference      bool          `json:"is_conference"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Enrollment links a student to a cohort and carries the running count of
// sessions they were marked present for.
type Enrollment struct {
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	BatchID       uuid.UUID `json:"batch_id"`
	BootcampID    uuid.UUID `json:"bootcamp_id"`
	AttendedCount int       `json:"attended_count"`
}
