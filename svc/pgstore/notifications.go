package pgstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/libraryops/pkg/pg"
	"github.com/dmitrymomot/libraryops/svc/notification"
)

const notificationColumns = `id, user_id, title, message, type, category, priority, channel, template_id,
	data, status, scheduled_for, expires_at, max_retries, retry_count, error_message,
	sent_at, read_at, created_at, updated_at`

// NotificationStore implements notification.Store on PostgreSQL.
type NotificationStore struct {
	db Querier
}

// NewNotificationStore creates a notification store over db.
func NewNotificationStore(db Querier) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Create(ctx context.Context, n notification.Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		notificationArgs(n)...,
	)
	if pg.IsDuplicateKeyError(err) {
		return notification.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) Get(ctx context.Context, id string) (notification.Notification, error) {
	row := s.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if pg.IsNotFoundError(err) {
		return notification.Notification{}, notification.ErrNotificationNotFound
	}
	if err != nil {
		return notification.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// Update writes n only while the stored status still equals expected.
func (s *NotificationStore) Update(ctx context.Context, n notification.Notification, expected notification.Status) error {
	args := append(notificationArgs(n), string(expected))
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET
			user_id = $2, title = $3, message = $4, type = $5, category = $6, priority = $7,
			channel = $8, template_id = $9, data = $10, status = $11, scheduled_for = $12,
			expires_at = $13, max_retries = $14, retry_count = $15, error_message = $16,
			sent_at = $17, read_at = $18, created_at = $19, updated_at = $20
		WHERE id = $1 AND status = $21`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, n.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check notification: %w", err)
	}
	if !exists {
		return notification.ErrNotificationNotFound
	}
	return notification.ErrStaleStatus
}

// QueryDue returns PENDING and SCHEDULED rows due at now, oldest first.
func (s *NotificationStore) QueryDue(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = ANY($1) AND scheduled_for <= $2
		ORDER BY scheduled_for, id
		LIMIT $3`,
		statusStrings(notification.DueStatuses), now, limit,
	)
}

// QueryExpirable returns non-terminal rows whose expiry has passed.
func (s *NotificationStore) QueryExpirable(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = ANY($1) AND expires_at < $2
		ORDER BY expires_at, id
		LIMIT $3`,
		statusStrings(notification.NonTerminalStatuses), now, limit,
	)
}

func (s *NotificationStore) QueryByUser(ctx context.Context, userID string, f notification.Filter) ([]notification.Notification, error) {
	query, args := userQuery(userID, f)
	return s.list(ctx, query, args...)
}

// CountUnread counts SENT rows of userID with no read time.
func (s *NotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE user_id = $1 AND status = $2 AND read_at IS NULL`,
		userID, string(notification.StatusSent),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *NotificationStore) list(ctx context.Context, query string, args ...any) ([]notification.Notification, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// userQuery builds the filtered, newest-first listing for one user.
func userQuery(userID string, f notification.Filter) (string, []any) {
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var b strings.Builder
	b.WriteString("SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1")
	if len(f.Statuses) > 0 {
		b.WriteString(" AND status = ANY(" + arg(statusStrings(f.Statuses)) + ")")
	}
	if f.Channel != "" {
		b.WriteString(" AND channel = " + arg(string(f.Channel)))
	}
	if f.Category != "" {
		b.WriteString(" AND category = " + arg(f.Category))
	}
	if f.UnreadOnly {
		b.WriteString(" AND read_at IS NULL")
	}
	b.WriteString(" ORDER BY created_at DESC, id")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + arg(f.Offset))
	}
	return b.String(), args
}

// notificationArgs returns the column values in notificationColumns order.
func notificationArgs(n notification.Notification) []any {
	return []any{
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Category, int16(n.Priority),
		string(n.Channel), n.TemplateID, n.Data, string(n.Status), n.ScheduledFor,
		n.ExpiresAt, n.MaxRetries, n.RetryCount, n.ErrorMessage,
		n.SentAt, n.ReadAt, n.CreatedAt, n.UpdatedAt,
	}
}

func scanNotification(row pgx.Row) (notification.Notification, error) {
	var (
		n               notification.Notification
		priority        int16
		channel, status string
	)
	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Category, &priority,
		&channel, &n.TemplateID, &n.Data, &status, &n.ScheduledFor,
		&n.ExpiresAt, &n.MaxRetries, &n.RetryCount, &n.ErrorMessage,
		&n.SentAt, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return notification.Notification{}, err
	}
	n.Priority = notification.Priority(priority)
	n.Channel = notification.Channel(channel)
	n.Status = notification.Status(status)
	return n, nil
}

func statusStrings(statuses []notification.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
