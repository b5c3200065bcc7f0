// Package zoom wraps the dedicated video-conferencing provider's REST API:
// meeting instance listing, paginated participant reports, and recording
// metadata/download.
package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Config holds provider endpoints and server-to-server OAuth credentials.
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
}

// reportPageSize is the provider maximum for participant report pages.
const reportPageSize = 300

// MeetingInstance is one provider-side occurrence of a (possibly recurring)
// meeting. An interrupted and restarted call yields multiple instances for
// the same logical session.
type MeetingInstance struct {
	UUID      string    `json:"uuid"`
	StartTime time.Time `json:"start_time"`
}

// Participant is one raw report entry for a meeting instance. The same person
// appears multiple times after reconnects.
type Participant struct {
	Name      string `json:"name"`
	UserEmail string `json:"user_email"`
	Duration  int64  `json:"duration"` // seconds connected
}

// RecordingFile is one media artifact of a recorded meeting.
type RecordingFile struct {
	ID          string `json:"id"`
	FileType    string `json:"file_type"`
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
}

// Recordings is the recording metadata for one meeting or instance.
type Recordings struct {
	UUID           string          `json:"uuid"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// Client is a stateless HTTP wrapper around the provider API. All calls carry
// a bearer token from the shared TokenSource.
type Client struct {
	baseURL string
	tokens  *TokenSource
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a provider API client.
func NewClient(cfg Config, tokens *TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
	}
}

// ListPastInstances returns all ended instances of a meeting.
func (c *Client) ListPastInstances(ctx context.Context, meetingID string) ([]MeetingInstance, error) {
	var body struct {
		Meetings []MeetingInstance `json:"meetings"`
	}
	path := fmt.Sprintf("/past_meetings/%s/instances", url.PathEscape(meetingID))
	if err := c.getJSON(ctx, path, nil, &body); err != nil {
		return nil, fmt.Errorf("list past instances: %w", err)
	}
	return body.Meetings, nil
}

// ParticipantReport fetches the full participant report for one meeting
// instance, following next_page_token until the provider signals no more pages.
func (c *Client) ParticipantReport(ctx context.Context, instanceUUID string) ([]Participant, error) {
	var all []Participant
	nextToken := ""
	path := fmt.Sprintf("/report/meetings/%s/participants", url.PathEscape(instanceUUID))
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(reportPageSize))
		if nextToken != "" {
			q.Set("next_page_token", nextToken)
		}
		var page struct {
			Participants  []Participant `json:"participants"`
			NextPageToken string        `json:"next_page_token"`
		}
		if err := c.getJSON(ctx, path, q, &page); err != nil {
			return nil, fmt.Errorf("participant report: %w", err)
		}
		all = append(all, page.Participants...)
		if page.NextPageToken == "" {
			return all, nil
		}
		nextToken = page.NextPageToken
	}
}

// RecordingsByInstance fetches recording metadata by the stable instance UUID.
func (c *Client) RecordingsByInstance(ctx context.Context, instanceUUID string) (*Recordings, error) {
	var body Recordings
	path := fmt.Sprintf("/meetings/%s/recordings", url.PathEscape(instanceUUID))
	if err := c.getJSON(ctx, path, nil, &body); err != nil {
		return nil, fmt.Errorf("recordings by instance: %w", err)
	}
	return &body, nil
}

// RecordingsByMeetingID fetches recording metadata by the legacy meeting id.
// Only used for sessions recorded before instance ids were captured.
func (c *Client) RecordingsByMeetingID(ctx context.Context, meetingID string) (*Recordings, error) {
	var body Recordings
	path := fmt.Sprintf("/meetings/%s/recordings", url.PathEscape(meetingID))
	if err := c.getJSON(ctx, path, nil, &body); err != nil {
		return nil, fmt.Errorf("recordings by meeting id: %w", err)
	}
	return &body, nil
}

// DownloadRecording streams a recording file. The caller must close the body.
func (c *Client) DownloadRecording(ctx context.Context, downloadURL string) (io.ReadCloser, int64, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download status: %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
