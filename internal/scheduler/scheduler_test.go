package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classforge/backend/internal/calendar"
	"github.com/classforge/backend/internal/models"
	"github.com/classforge/backend/internal/tokens"
)

func TestIntervalForLoad(t *testing.T) {
	cases := []struct {
		load int
		want time.Duration
	}{
		{0, 100 * time.Minute},
		{1, 100 * time.Minute},
		{2, 70 * time.Minute},
		{3, 70 * time.Minute},
		{4, 40 * time.Minute},
		{6, 40 * time.Minute},
		{7, 30 * time.Minute},
		{10, 30 * time.Minute},
		{11, 20 * time.Minute},
		{13, 20 * time.Minute},
		{14, 10 * time.Minute},
		{15, 10 * time.Minute},
		{16, DefaultInterval},
		{40, DefaultInterval},
		{-1, DefaultInterval},
	}
	for _, tc := range cases {
		if got := IntervalForLoad(tc.load); got != tc.want {
			t.Errorf("IntervalForLoad(%d) = %v, want %v", tc.load, got, tc.want)
		}
	}
}

type fakeSessionStore struct {
	mu           sync.Mutex
	sessions     []models.Session
	reclassified bool
	links        map[uuid.UUID]string
	listStarted  chan struct{}
	listBlock    chan struct{}
}

func (f *fakeSessionStore) ListUnfinalized(context.Context) ([]models.Session, error) {
	if f.listStarted != nil {
		close(f.listStarted)
		f.listStarted = nil
	}
	if f.listBlock != nil {
		<-f.listBlock
	}
	return f.sessions, nil
}

func (f *fakeSessionStore) ReclassifyStatuses(context.Context, time.Time) error {
	f.mu.Lock()
	f.reclassified = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSessionStore) UpdateRecordingLink(_ context.Context, id uuid.UUID, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.links == nil {
		f.links = make(map[uuid.UUID]string)
	}
	f.links[id] = link
	return nil
}

type fakeAttendance struct {
	computed []uuid.UUID
}

func (f *fakeAttendance) EnsureComputed(_ context.Context, id uuid.UUID) error {
	f.computed = append(f.computed, id)
	return nil
}

type fakeJobCreator struct {
	created []uuid.UUID
}

func (f *fakeJobCreator) CreateForSession(_ context.Context, s *models.Session) (*models.RecordingJob, error) {
	f.created = append(f.created, s.ID)
	return &models.RecordingJob{SessionID: s.ID, Status: models.JobStatusDiscovered}, nil
}

type fakeCalendar struct {
	event *calendar.Event
}

func (f *fakeCalendar) GetEvent(_ context.Context, _, _ string) (*calendar.Event, error) {
	return f.event, nil
}

type fakeTokenStore struct {
	creds *tokens.Credentials
}

func (f *fakeTokenStore) GetByEmail(_ context.Context, _ string) (*tokens.Credentials, error) {
	if f.creds == nil {
		return nil, tokens.ErrNoCredentials
	}
	return f.creds, nil
}

func recentSession(conference bool) models.Session {
	return models.Session{
		ID:           uuid.New(),
		MeetingID:    "m-1",
		BatchID:      uuid.New(),
		CreatorEmail: "teacher@example.com",
		Status:       models.SessionStatusCompleted,
		StartsAt:     time.Now().Add(-3 * time.Hour),
		EndsAt:       time.Now().Add(-2 * time.Hour),
		IsConference: conference,
	}
}

func fixture(store *fakeSessionStore) (*Scheduler, *fakeAttendance, *fakeJobCreator, *fakeSessionStore) {
	att := &fakeAttendance{}
	jc := &fakeJobCreator{}
	cal := &fakeCalendar{event: &calendar.Event{}}
	ts := &fakeTokenStore{creds: &tokens.Credentials{AccessToken: "tok"}}
	s := New(store, att, jc, cal, ts, time.Hour, 0, nil)
	return s, att, jc, store
}

func TestRunCycleFinalizesConferenceSession(t *testing.T) {
	session := recentSession(true)
	s, att, jc, store := fixture(&fakeSessionStore{sessions: []models.Session{session}})

	next := s.RunCycle(context.Background())
	if !store.reclassified {
		t.Error("statuses not reclassified")
	}
	if len(att.computed) != 1 || att.computed[0] != session.ID {
		t.Errorf("attendance computed for %v", att.computed)
	}
	if len(jc.created) != 1 || jc.created[0] != session.ID {
		t.Errorf("jobs created for %v", jc.created)
	}
	if next != 100*time.Minute {
		t.Errorf("next interval = %v, want 100m for load 1", next)
	}
}

func TestRunCycleGivesUpOnStaleSession(t *testing.T) {
	session := recentSession(true)
	session.EndsAt = time.Now().Add(-4 * 24 * time.Hour)
	s, _, jc, store := fixture(&fakeSessionStore{sessions: []models.Session{session}})

	s.RunCycle(context.Background())
	if store.links[session.ID] != models.RecordingLinkNotFound {
		t.Errorf("link = %q, want %q", store.links[session.ID], models.RecordingLinkNotFound)
	}
	if len(jc.created) != 0 {
		t.Error("job created for a session past the lookback window")
	}
}

func TestRunCycleResolvesCalendarAttachment(t *testing.T) {
	session := recentSession(false)
	store := &fakeSessionStore{sessions: []models.Session{session}}
	att := &fakeAttendance{}
	jc := &fakeJobCreator{}
	cal := &fakeCalendar{event: &calendar.Event{Attachments: []calendar.Attachment{
		{FileURL: "https://drive/doc", MimeType: "application/pdf", Title: "slides"},
		{FileURL: "https://drive/rec", MimeType: "video/mp4", Title: "class video"},
	}}}
	ts := &fakeTokenStore{creds: &tokens.Credentials{AccessToken: "tok"}}
	s := New(store, att, jc, cal, ts, time.Hour, 0, nil)

	s.RunCycle(context.Background())
	if store.links[session.ID] != "https://drive/rec" {
		t.Errorf("link = %q", store.links[session.ID])
	}
	if len(jc.created) != 0 {
		t.Error("recording job created for a calendar-backed session")
	}
}

func TestRunCycleCalendarSessionWithoutCredentials(t *testing.T) {
	session := recentSession(false)
	store := &fakeSessionStore{sessions: []models.Session{session}}
	s := New(store, &fakeAttendance{}, &fakeJobCreator{}, &fakeCalendar{event: &calendar.Event{}},
		&fakeTokenStore{}, time.Hour, 0, nil)

	s.RunCycle(context.Background())
	if len(store.links) != 0 {
		t.Errorf("link written without credentials: %v", store.links)
	}
}

func TestRunCycleSkipsWhenAlreadyInFlight(t *testing.T) {
	store := &fakeSessionStore{
		sessions:    []models.Session{recentSession(true)},
		listStarted: make(chan struct{}),
		listBlock:   make(chan struct{}),
	}
	s, _, jc, _ := fixture(store)

	done := make(chan time.Duration)
	go func() { done <- s.RunCycle(context.Background()) }()
	<-store.listStarted

	// second cycle while the first is blocked inside ListUnfinalized
	s.RunCycle(context.Background())
	if len(jc.created) != 0 {
		t.Error("overlapping cycle did work")
	}

	close(store.listBlock)
	<-done
	if len(jc.created) != 1 {
		t.Errorf("first cycle created %d jobs, want 1", len(jc.created))
	}
}

func TestRunCycleAdaptsIntervalToBacklog(t *testing.T) {
	var sessions []models.Session
	for i := 0; i < 20; i++ {
		sessions = append(sessions, recentSession(true))
	}
	s, _, _, _ := fixture(&fakeSessionStore{sessions: sessions})

	if next := s.RunCycle(context.Background()); next != DefaultInterval {
		t.Errorf("next interval = %v, want %v for heavy backlog", next, DefaultInterval)
	}
	if s.Interval() != DefaultInterval {
		t.Errorf("Interval() = %v", s.Interval())
	}
}
