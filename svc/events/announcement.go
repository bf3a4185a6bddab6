package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/svc/bulk"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

// AnnouncementEvent is published by staff tools to reach many patrons at once.
// The event's userId is the author; recipients travel in the data:
//
//	{"type": "announcement.published", "userId": "staff-7", "data": {
//	    "recipients": ["u-1", "u-2"], "title": "Closed Monday",
//	    "message": "The branch is closed on Monday.", "scheduledFor": "2025-03-14T08:00:00Z"}}
const AnnouncementEvent = "announcement.published"

// BulkSender fans content out to many users. *bulk.Orchestrator implements it.
type BulkSender interface {
	SendBulk(ctx context.Context, userIDs []string, c bulk.Content) (bulk.Result, error)
	ScheduleBulk(ctx context.Context, userIDs []string, c bulk.Content, at time.Time) (bulk.Result, error)
}

// AnnouncementHandler sends an announcement through b on ch. Per-recipient
// failures are logged and do not fail the event.
func AnnouncementHandler(b BulkSender, ch notification.Channel, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, e Event) error {
		recipients, err := stringSlice(e.Data, "recipients")
		if err != nil {
			return err
		}
		c := bulk.Content{
			Title:    stringField(e.Data, "title"),
			Message:  stringField(e.Data, "message"),
			Type:     e.Type,
			Category: stringField(e.Data, "category"),
			Priority: notification.PriorityMedium,
			Channel:  ch,
			Data:     map[string]any{"author": e.UserID},
		}
		if c.Category == "" {
			c.Category = "announcements"
		}

		var res bulk.Result
		if at := stringField(e.Data, "scheduledFor"); at != "" {
			t, perr := time.Parse(time.RFC3339, at)
			if perr != nil {
				return apperr.Validationf(ErrInvalidEvent, "scheduledFor", "must be an RFC 3339 timestamp")
			}
			res, err = b.ScheduleBulk(ctx, recipients, c, t)
		} else {
			res, err = b.SendBulk(ctx, recipients, c)
		}
		if err != nil {
			return fmt.Errorf("announcement: %w", err)
		}

		log.LogAttrs(ctx, slog.LevelInfo, "announcement dispatched",
			logger.Component("events"),
			slog.String("batch_id", res.BatchID),
			logger.Count("sent", res.TotalSent),
			logger.Count("failed", res.TotalFailed),
		)
		return nil
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// stringSlice reads a JSON array of strings decoded into []any.
func stringSlice(data map[string]any, key string) ([]string, error) {
	raw, ok := data[key].([]any)
	if !ok {
		return nil, apperr.Validationf(ErrInvalidEvent, key, "must be an array of user ids")
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, apperr.Validationf(ErrInvalidEvent, key, "must contain only strings")
		}
		out = append(out, s)
	}
	return out, nil
}
