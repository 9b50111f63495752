// Package calendarx books training sessions on a Google calendar, each as
// a 30-minute event with a Meet conference attached.
package calendarx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/tidewater-labs/callbridge/bridge/contract"
)

type Config struct {
	ClientID     string `envconfig:"CLIENT_ID" split_words:"true" required:"true"`
	ClientSecret string `envconfig:"CLIENT_SECRET" split_words:"true" required:"true"`
	RefreshToken string `envconfig:"REFRESH_TOKEN" split_words:"true" required:"true"`
	CalendarID   string `envconfig:"CALENDAR_ID" split_words:"true" default:"primary"`
	Timezone     string `envconfig:"TIMEZONE" split_words:"true" default:"America/Los_Angeles"`
}

type Client struct {
	cfg Config
	svc *calendar.Service
}

var _ contract.Calendar = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{calendar.CalendarEventsScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &Client{cfg: cfg, svc: svc}, nil
}

const eventDuration = 30 * time.Minute

// CreateEvent books one training session and returns the event id. The
// attendee receives the invite with the Meet link by email.
func (c *Client) CreateEvent(ctx context.Context, req contract.BookingRequest) (string, error) {
	ev := &calendar.Event{
		Summary:     "AI Training Session",
		Description: "Training session booked during a phone consultation.",
		Start: &calendar.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: c.cfg.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: req.Start.Add(eventDuration).Format(time.RFC3339),
			TimeZone: c.cfg.Timezone,
		},
		Attendees: []*calendar.EventAttendee{{Email: req.Email}},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}

	created, err := c.svc.Events.Insert(c.cfg.CalendarID, ev).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}
