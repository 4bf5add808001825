package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/config"
	"github.com/sandeepkv93/dayplan/internal/model"
)

const primaryCalendar = "primary"

// GoogleSource reads timed events from one Google calendar. It never runs
// an authorization flow; the token file must already exist.
type GoogleSource struct {
	srv        *gcal.Service
	calendarID string
	logger     *slog.Logger
}

func NewGoogleSource(ctx context.Context, cfg config.Calendar, logger *slog.Logger) (*GoogleSource, error) {
	const op = "calendar.NewGoogleSource"
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindConfiguration, op, err, "unable to read client secret file %s", cfg.CredentialsFile)
	}
	oc, err := google.ConfigFromJSON(b, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindConfiguration, op, err, "unable to parse client secret file")
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindConfiguration, op, err, "calendar token missing, authorize first")
	}
	srv, err := gcal.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, op, err)
	}
	return newGoogleSource(ctx, srv, cfg.Name, logger)
}

func newGoogleSource(ctx context.Context, srv *gcal.Service, name string, logger *slog.Logger) (*GoogleSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id, err := resolveCalendarID(ctx, srv, name)
	if err != nil {
		return nil, err
	}
	return &GoogleSource{srv: srv, calendarID: id, logger: logger.With("component", "calendar", "calendar_id", id)}, nil
}

// resolveCalendarID maps a calendar's display name to its id.
func resolveCalendarID(ctx context.Context, srv *gcal.Service, name string) (string, error) {
	if name == "" || name == primaryCalendar {
		return primaryCalendar, nil
	}
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", apperr.Wrapf(apperr.KindTransport, "calendar.resolve", err, "unable to retrieve calendar list")
	}
	for _, item := range list.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", apperr.New(apperr.KindNotFound, "calendar.resolve", fmt.Sprintf("calendar %q not found", name))
}

func (g *GoogleSource) Events(ctx context.Context, start, end time.Time) ([]model.CommittedEvent, error) {
	events, err := g.srv.Events.List(g.calendarID).
		Context(ctx).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindTransport, "calendar.Events", err, "unable to retrieve events from calendar")
	}
	out := convertEvents(events.Items, start.Location())
	g.logger.Debug("calendar events loaded", "count", len(out), "skipped", len(events.Items)-len(out))
	return out, nil
}

// convertEvents keeps timed, busy, non-cancelled events. All-day events
// carry only a Date and are skipped.
func convertEvents(items []*gcal.Event, loc *time.Location) []model.CommittedEvent {
	out := make([]model.CommittedEvent, 0, len(items))
	for _, item := range items {
		if item == nil || item.Status == "cancelled" || item.Transparency == "transparent" {
			continue
		}
		if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			continue
		}
		if loc != nil {
			start, end = start.In(loc), end.In(loc)
		}
		out = append(out, model.CommittedEvent{
			Title:  item.Summary,
			Start:  start,
			End:    end,
			Source: "google",
		})
	}
	return out
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}
