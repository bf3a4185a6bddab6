package notification

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/pkg/statemachine"
	"github.com/dmitrymomot/libraryops/pkg/validator"
	"github.com/dmitrymomot/libraryops/svc/analytics"
	"github.com/dmitrymomot/libraryops/svc/preference"
	"github.com/dmitrymomot/libraryops/svc/template"
)

const resource = "notification"

// TemplateRenderer resolves and renders a template reference.
type TemplateRenderer interface {
	Render(ctx context.Context, ref template.Ref, values map[string]any, locale string) (*template.Template, template.Rendered, error)
}

// PreferenceSource returns a user's preferences, or nil when none are stored.
type PreferenceSource interface {
	Get(ctx context.Context, userID string) (*preference.Preferences, error)
}

// EventTracker records analytics events.
type EventTracker interface {
	Track(ctx context.Context, notificationID, userID string, typ analytics.EventType, metadata map[string]any) error
}

// Manager creates notifications and applies user-initiated changes to them.
// Status changes made by delivery belong to the dispatcher.
type Manager struct {
	store      Store
	users      UserDirectory
	templates  TemplateRenderer
	prefs      PreferenceSource
	tracker    EventTracker
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int
}

type ManagerOption func(*Manager)

// WithLogger sets the logger for the Manager.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock sets the clock used for timestamps and quiet hours.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTemplates sets the renderer used for template references.
func WithTemplates(r TemplateRenderer) ManagerOption {
	return func(m *Manager) { m.templates = r }
}

// WithPreferences sets the source of per-user delivery preferences.
func WithPreferences(src PreferenceSource) ManagerOption {
	return func(m *Manager) { m.prefs = src }
}

// WithTracker sets the analytics tracker for read events.
func WithTracker(t EventTracker) ManagerOption {
	return func(m *Manager) { m.tracker = t }
}

// WithDefaultMaxRetries overrides DefaultMaxRetries for new notifications.
func WithDefaultMaxRetries(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxRetries = n
		}
	}
}

// NewManager panics when store or users is nil.
func NewManager(store Store, users UserDirectory, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("notification: store cannot be nil")
	}
	if users == nil {
		panic("notification: user directory cannot be nil")
	}
	m := &Manager{
		store:      store,
		users:      users,
		logger:     slog.Default(),
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// CreateParams describes a notification to create.
type CreateParams struct {
	UserID   string
	Title    string
	Message  string
	Type     string
	Category string
	Priority Priority
	Channel  Channel

	// Template, when set, replaces Title and Message with the rendered
	// template and fills empty Type, Category and Channel from it.
	Template  template.Ref
	Variables map[string]any

	Data         map[string]any
	ScheduledFor *time.Time
	ExpiresAt    *time.Time
	MaxRetries   int

	// Exact keeps ScheduledFor as given and skips digest and quiet-hours
	// deferral. Bulk scheduling uses it because the caller chose the time.
	Exact bool
}

// Create validates p, renders its template, applies preference gating and
// persists the result as PENDING or SCHEDULED.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Notification, error) {
	now := m.now()

	if p.Priority == 0 {
		p.Priority = PriorityMedium
	}
	err := validator.Apply(
		validator.RequiredString("user_id", p.UserID),
		validator.When(p.ScheduledFor != nil, validator.DateAfter("scheduled_for", deref(p.ScheduledFor), now)),
		validator.When(p.ExpiresAt != nil, validator.DateAfter("expires_at", deref(p.ExpiresAt), now)),
		validator.Rule{
			Check: func() bool { return p.Priority.Valid() },
			Error: validator.ValidationError{Field: "priority", Message: "must be one of LOW, MEDIUM, HIGH, URGENT, CRITICAL"},
		},
		validator.Rule{
			Check: func() bool { return p.MaxRetries >= 0 },
			Error: validator.ValidationError{Field: "max_retries", Message: "must not be negative"},
		},
	)
	if err != nil {
		verr := apperr.FromRules(err)
		if p.ScheduledFor != nil && !p.ScheduledFor.After(now) {
			return nil, errors.Join(verr, ErrScheduleInPast)
		}
		return nil, verr
	}

	recipient, err := m.users.Lookup(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.NotFound(err, "user", p.UserID)
		}
		return nil, err
	}

	n := Notification{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		Title:      p.Title,
		Message:    p.Message,
		Type:       p.Type,
		Category:   p.Category,
		Priority:   p.Priority,
		Channel:    p.Channel,
		Data:       p.Data,
		ExpiresAt:  p.ExpiresAt,
		MaxRetries: p.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if n.MaxRetries == 0 {
		n.MaxRetries = m.maxRetries
	}

	if !p.Template.IsZero() {
		if err := m.applyTemplate(ctx, &n, p, recipient.Locale); err != nil {
			return nil, err
		}
	}

	err = validator.Apply(
		validator.RequiredString("title", n.Title),
		validator.RequiredString("message", n.Message),
		validator.OneOf("channel", n.Channel, Channels...),
	)
	if err != nil {
		return nil, apperr.FromRules(err)
	}

	prefs, err := m.preferences(ctx, n.UserID)
	if err != nil {
		return nil, err
	}
	if !preference.IsChannelEnabled(prefs, string(n.Channel)) {
		return nil, apperr.Validationf(ErrChannelDisabled, "channel", "channel %s is disabled for user", n.Channel)
	}
	if !preference.IsCategoryEnabled(prefs, n.Category) {
		return nil, apperr.Validationf(ErrCategoryDisabled, "category", "category %s is disabled for user", n.Category)
	}

	m.schedule(&n, p, prefs, now)

	if err := m.store.Create(ctx, n); err != nil {
		return nil, err
	}

	m.logger.LogAttrs(ctx, slog.LevelInfo, "notification created",
		logger.Component("lifecycle"),
		logger.NotificationID(n.ID),
		logger.UserID(n.UserID),
		logger.Channel(n.Channel),
		logger.Status(n.Status),
		logger.ScheduledFor(deref(n.ScheduledFor)),
	)
	return &n, nil
}

func (m *Manager) applyTemplate(ctx context.Context, n *Notification, p CreateParams, locale string) error {
	if m.templates == nil {
		return apperr.Validation("template", "templates are not configured")
	}
	tpl, out, err := m.templates.Render(ctx, p.Template, p.Variables, locale)
	if err != nil {
		return err
	}
	n.TemplateID = tpl.ID
	n.Title = out.Title
	n.Message = out.Message
	if n.Type == "" {
		n.Type = tpl.Type
	}
	if n.Category == "" {
		n.Category = tpl.Category
	}
	if n.Channel == "" {
		n.Channel = Channel(strings.ToUpper(tpl.Channel))
	}
	return nil
}

// schedule sets the initial status. Immediate notifications are PENDING
// with ScheduledFor = now so the due query picks them up. Low priority
// notifications wait for the digest slot, and quiet hours push everything
// to the next available time unless the caller fixed the time.
func (m *Manager) schedule(n *Notification, p CreateParams, prefs *preference.Preferences, now time.Time) {
	if p.ScheduledFor != nil {
		n.Status = StatusScheduled
		n.ScheduledFor = ptr(*p.ScheduledFor)
	} else {
		n.Status = StatusPending
		n.ScheduledFor = ptr(now)
	}
	if p.Exact {
		return
	}

	if n.Status == StatusPending && n.Priority == PriorityLow && prefs != nil && prefs.Digest.Enabled {
		n.Status = StatusScheduled
		n.ScheduledFor = ptr(preference.NextDigestTime(prefs, now))
	}
	if preference.IsInQuietHours(prefs, now) {
		n.Status = StatusScheduled
		n.ScheduledFor = ptr(preference.NextAvailableTime(prefs, now))
	}
}

func (m *Manager) preferences(ctx context.Context, userID string) (*preference.Preferences, error) {
	if m.prefs == nil {
		return nil, nil
	}
	return m.prefs.Get(ctx, userID)
}

// UpdateParams holds optional changes; nil fields are left as they are.
type UpdateParams struct {
	Title        *string
	Message      *string
	Priority     *Priority
	Data         map[string]any
	ScheduledFor *time.Time
	ExpiresAt    *time.Time
}

// Update changes a notification that has not been picked up yet.
// A new ScheduledFor must be in the future and makes the row SCHEDULED.
func (m *Manager) Update(ctx context.Context, id string, p UpdateParams) (*Notification, error) {
	now := m.now()
	n, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := n.Status

	err = validator.Apply(
		validator.When(p.Title != nil, validator.RequiredString("title", deref(p.Title))),
		validator.When(p.Message != nil, validator.RequiredString("message", deref(p.Message))),
		validator.When(p.ScheduledFor != nil, validator.DateAfter("scheduled_for", deref(p.ScheduledFor), now)),
		validator.When(p.ExpiresAt != nil, validator.DateAfter("expires_at", deref(p.ExpiresAt), now)),
		validator.When(p.Priority != nil, validator.Rule{
			Check: func() bool { return p.Priority.Valid() },
			Error: validator.ValidationError{Field: "priority", Message: "must be one of LOW, MEDIUM, HIGH, URGENT, CRITICAL"},
		}),
	)
	if err != nil {
		return nil, apperr.FromRules(err)
	}

	ev := EventRelease
	if n.Status == StatusScheduled || p.ScheduledFor != nil {
		ev = EventReschedule
	}
	if err := m.transition(ctx, &n, ev); err != nil {
		return nil, err
	}

	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Message != nil {
		n.Message = *p.Message
	}
	if p.Priority != nil {
		n.Priority = *p.Priority
	}
	if p.Data != nil {
		n.Data = p.Data
	}
	if p.ScheduledFor != nil {
		n.ScheduledFor = ptr(*p.ScheduledFor)
	}
	if p.ExpiresAt != nil {
		n.ExpiresAt = ptr(*p.ExpiresAt)
	}
	n.UpdatedAt = now

	if err := m.save(ctx, n, expected); err != nil {
		return nil, err
	}
	return &n, nil
}

// Cancel flips a PENDING or SCHEDULED notification to CANCELLED. The row is kept.
func (m *Manager) Cancel(ctx context.Context, id string) (*Notification, error) {
	n, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := n.Status

	if err := m.transition(ctx, &n, EventCancel); err != nil {
		return nil, err
	}
	n.UpdatedAt = m.now()

	if err := m.save(ctx, n, expected); err != nil {
		return nil, err
	}

	m.logger.LogAttrs(ctx, slog.LevelInfo, "notification cancelled",
		logger.Component("lifecycle"),
		logger.NotificationID(n.ID),
		logger.UserID(n.UserID),
	)
	return &n, nil
}

// SendNow moves a waiting notification to immediate delivery.
func (m *Manager) SendNow(ctx context.Context, id string) (*Notification, error) {
	n, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := n.Status

	if err := m.transition(ctx, &n, EventRelease); err != nil {
		return nil, err
	}
	now := m.now()
	n.ScheduledFor = ptr(now)
	n.UpdatedAt = now

	if err := m.save(ctx, n, expected); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead stamps ReadAt once and records an OPENED event. Marking an
// already read notification is a no-op.
func (m *Manager) MarkRead(ctx context.Context, id string) (*Notification, error) {
	n, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead() {
		return &n, nil
	}

	now := m.now()
	n.ReadAt = ptr(now)
	n.UpdatedAt = now
	if err := m.save(ctx, n, n.Status); err != nil {
		return nil, err
	}

	if m.tracker != nil {
		if err := m.tracker.Track(ctx, n.ID, n.UserID, analytics.EventOpened, n.AnalyticsMetadata()); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to track open",
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
		}
	}
	return &n, nil
}

// Get returns the notification with id.
func (m *Manager) Get(ctx context.Context, id string) (*Notification, error) {
	n, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns a user's notifications, newest first.
func (m *Manager) List(ctx context.Context, userID string, f Filter) ([]Notification, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id", "cannot be empty")
	}
	return m.store.QueryByUser(ctx, userID, f)
}

// CountUnread returns the number of sent, unread notifications for userID.
func (m *Manager) CountUnread(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperr.Validation("user_id", "cannot be empty")
	}
	return m.store.CountUnread(ctx, userID)
}

func (m *Manager) load(ctx context.Context, id string) (Notification, error) {
	n, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotificationNotFound) {
		return Notification{}, apperr.NotFound(err, resource, id)
	}
	return n, err
}

func (m *Manager) transition(ctx context.Context, n *Notification, ev Event) error {
	err := Transition(ctx, n, ev)
	if statemachine.IsTransitionError(err) {
		return apperr.Conflict(errors.Join(ErrInvalidTransition, err), resource,
			"cannot "+string(ev)+" a notification in status "+string(n.Status))
	}
	return err
}

func (m *Manager) save(ctx context.Context, n Notification, expected Status) error {
	err := m.store.Update(ctx, n, expected)
	switch {
	case errors.Is(err, ErrStaleStatus):
		return apperr.Conflict(err, resource, "status changed concurrently, reload and retry")
	case errors.Is(err, ErrNotificationNotFound):
		return apperr.NotFound(err, resource, n.ID)
	}
	return err
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
