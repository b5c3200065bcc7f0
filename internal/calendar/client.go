// Package calendar wraps the calendar provider's event lookup. It is the
// fallback source of recording links for calendar-backed sessions, where the
// recording shows up as an event attachment instead of a provider recording.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the calendar API endpoint.
type Config struct {
	BaseURL    string
	CalendarID string
}

// Attachment is one file attached to a calendar event.
type Attachment struct {
	FileURL  string `json:"fileUrl"`
	MimeType string `json:"mimeType"`
	Title    string `json:"title"`
}

// Event is a calendar event with its attachments.
type Event struct {
	ID          string       `json:"id"`
	Attachments []Attachment `json:"attachments"`
}

// Client is a stateless HTTP wrapper around the calendar events API.
// Calls are made with the creator's own OAuth access token.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a calendar API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// GetEvent fetches one event by id using the given access token.
func (c *Client) GetEvent(ctx context.Context, accessToken, eventID string) (*Event, error) {
	u := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.CalendarID), url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get event status: %d", resp.StatusCode)
	}

	var ev Event
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// RecordingAttachment picks the recording attachment from an event, if any:
// a video attachment or one whose title marks it as a recording.
func RecordingAttachment(ev *Event) *Attachment {
	for i := range ev.Attachments {
		att := &ev.Attachments[i]
		if att.MimeType == "video/mp4" || strings.Contains(strings.ToLower(att.Title), "recording") {
			return att
		}
	}
	return nil
}
