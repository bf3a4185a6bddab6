package bulk

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/libraryops/pkg/apperr"
	"github.com/dmitrymomot/libraryops/pkg/async"
	"github.com/dmitrymomot/libraryops/pkg/audit"
	"github.com/dmitrymomot/libraryops/pkg/logger"
	"github.com/dmitrymomot/libraryops/pkg/validator"
	"github.com/dmitrymomot/libraryops/svc/notification"
	"github.com/dmitrymomot/libraryops/svc/template"
)

// AuditAction is the audit action written after every bulk run.
const AuditAction = "notifications.bulk_send"

// Creator creates a single notification. *notification.Manager implements it.
type Creator interface {
	Create(ctx context.Context, p notification.CreateParams) (*notification.Notification, error)
}

// Auditor records the completion of a bulk run. *audit.Logger implements it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
}

// Content is what every recipient of a bulk run receives.
type Content struct {
	Title     string
	Message   string
	Type      string
	Category  string
	Priority  notification.Priority
	Channel   notification.Channel
	Template  template.Ref
	Variables map[string]any
	Data      map[string]any
	ExpiresAt *time.Time
}

// RecipientError is the failure for one user.
type RecipientError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
	Err    error  `json:"-"`
}

// Result aggregates a bulk run. NotificationIDs keeps the order of the
// input user ids.
type Result struct {
	BatchID         string           `json:"batch_id"`
	TotalSent       int              `json:"total_sent"`
	TotalFailed     int              `json:"total_failed"`
	Errors          []RecipientError `json:"errors"`
	NotificationIDs []string         `json:"notification_ids"`
}

// Orchestrator fans one piece of content out to many users in chunks.
type Orchestrator struct {
	creator       Creator
	auditor       Auditor
	logger        *slog.Logger
	now           func() time.Time
	chunkSize     int
	concurrency   int
	maxRecipients int
	pause         time.Duration
	maxAhead      time.Duration
}

type Option func(*Orchestrator)

// WithLogger sets the logger for the Orchestrator.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used to validate scheduled times.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAuditor sets the sink for the completion audit event.
func WithAuditor(a Auditor) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

// WithChunkSize sets how many users are processed per chunk. Default is 100.
func WithChunkSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithConcurrency bounds concurrent creates within a chunk. Default is the chunk size.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMaxRecipients sets the hard ceiling on user ids per call. Default is 10,000.
func WithMaxRecipients(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRecipients = n
		}
	}
}

// WithChunkPause sets the pause between chunks. Default is 100ms; 0 disables it.
func WithChunkPause(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.pause = d
		}
	}
}

// NewOrchestrator creates an Orchestrator that creates notifications through creator.
func NewOrchestrator(creator Creator, opts ...Option) (*Orchestrator, error) {
	if creator == nil {
		return nil, ErrCreatorNil
	}
	o := &Orchestrator{
		creator:       creator,
		logger:        slog.Default(),
		now:           time.Now,
		chunkSize:     100,
		maxRecipients: 10000,
		pause:         100 * time.Millisecond,
		maxAhead:      365 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency == 0 {
		o.concurrency = o.chunkSize
	}
	return o, nil
}

// SendBulk creates one notification per user for immediate delivery.
// Per-user failures are reported in the result. Only an invalid request
// returns an error, plus ErrAborted when ctx ends between chunks.
func (o *Orchestrator) SendBulk(ctx context.Context, userIDs []string, c Content) (Result, error) {
	if err := apperr.FromRules(validator.Apply(o.rules(userIDs, c)...)); err != nil {
		return Result{}, err
	}
	return o.run(ctx, userIDs, c, nil)
}

// ScheduleBulk is SendBulk with a fixed delivery time. at must be in the
// future and at most one year ahead. Every notification is SCHEDULED at
// exactly that time; quiet hours and digests do not move it.
func (o *Orchestrator) ScheduleBulk(ctx context.Context, userIDs []string, c Content, at time.Time) (Result, error) {
	now := o.now()
	rules := append(o.rules(userIDs, c),
		validator.DateAfter("scheduled_for", at, now),
		validator.DateNotAfter("scheduled_for", at, now.Add(o.maxAhead)),
	)
	if err := apperr.FromRules(validator.Apply(rules...)); err != nil {
		return Result{}, err
	}
	return o.run(ctx, userIDs, c, &at)
}

// Title and message may be blank only when a template supplies them.
func (o *Orchestrator) rules(userIDs []string, c Content) []validator.Rule {
	useTemplate := !c.Template.IsZero()
	return []validator.Rule{
		validator.RequiredSlice("user_ids", userIDs),
		validator.MaxLenSlice("user_ids", userIDs, o.maxRecipients),
		validator.When(!useTemplate, validator.RequiredString("title", strings.TrimSpace(c.Title))),
		validator.When(!useTemplate, validator.RequiredString("message", strings.TrimSpace(c.Message))),
	}
}

func (o *Orchestrator) run(ctx context.Context, userIDs []string, c Content, at *time.Time) (Result, error) {
	start := time.Now()
	res := Result{
		BatchID:         uuid.NewString(),
		Errors:          []RecipientError{},
		NotificationIDs: make([]string, 0, len(userIDs)),
	}

	var aborted error
	for i, chunk := range chunks(userIDs, o.chunkSize) {
		if i > 0 {
			if err := o.wait(ctx); err != nil {
				aborted = err
				break
			}
		}
		o.processChunk(ctx, chunk, c, at, &res)
	}

	if aborted != nil {
		processed := res.TotalSent + res.TotalFailed
		for _, id := range userIDs[processed:] {
			res.TotalFailed++
			res.Errors = append(res.Errors, RecipientError{UserID: id, Error: aborted.Error(), Err: aborted})
		}
	}

	o.audit(ctx, res, len(userIDs), at)
	o.logger.LogAttrs(ctx, slog.LevelInfo, "bulk notifications processed",
		logger.Component("bulk"),
		slog.String("batch_id", res.BatchID),
		logger.Count("recipients", len(userIDs)),
		logger.Count("sent", res.TotalSent),
		logger.Count("failed", res.TotalFailed),
		logger.Duration(time.Since(start)),
	)

	if aborted != nil {
		return res, errors.Join(ErrAborted, aborted)
	}
	return res, nil
}

// processChunk settles every create in the chunk before returning. A panic
// in one create is recorded as that recipient's error. Results keep input order.
func (o *Orchestrator) processChunk(ctx context.Context, userIDs []string, c Content, at *time.Time, res *Result) {
	results := async.AllSettled(ctx, userIDs, o.concurrency, func(ctx context.Context, userID string) (string, error) {
		n, err := o.creator.Create(ctx, params(userID, c, at))
		if err != nil {
			return "", err
		}
		return n.ID, nil
	})

	for _, r := range results {
		if r.Err != nil {
			res.TotalFailed++
			res.Errors = append(res.Errors, RecipientError{UserID: r.Input, Error: r.Err.Error(), Err: r.Err})
			continue
		}
		res.TotalSent++
		res.NotificationIDs = append(res.NotificationIDs, r.Value)
	}
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.pause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Orchestrator) audit(ctx context.Context, res Result, recipients int, at *time.Time) {
	if o.auditor == nil {
		return
	}
	opts := []audit.EventOption{
		audit.WithResource("notification_batch", res.BatchID),
		audit.WithMetadata("recipients", recipients),
		audit.WithMetadata("total_sent", res.TotalSent),
		audit.WithMetadata("total_failed", res.TotalFailed),
		audit.WithMetadata("notification_ids", res.NotificationIDs),
	}
	if at != nil {
		opts = append(opts, audit.WithMetadata("scheduled_for", *at))
	}
	if res.TotalSent == 0 {
		opts = append(opts, audit.WithResult(audit.ResultFailure))
	}
	if err := o.auditor.Log(ctx, AuditAction, opts...); err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to write bulk audit event",
			logger.Component("bulk"),
			logger.Error(err),
		)
	}
}

func params(userID string, c Content, at *time.Time) notification.CreateParams {
	p := notification.CreateParams{
		UserID:    userID,
		Title:     c.Title,
		Message:   c.Message,
		Type:      c.Type,
		Category:  c.Category,
		Priority:  c.Priority,
		Channel:   c.Channel,
		Template:  c.Template,
		Variables: c.Variables,
		Data:      c.Data,
		ExpiresAt: c.ExpiresAt,
	}
	if at != nil {
		p.ScheduledFor = at
		p.Exact = true
	}
	return p
}

func chunks[T any](s []T, size int) [][]T {
	out := make([][]T, 0, (len(s)+size-1)/size)
	for size < len(s) {
		s, out = s[size:], append(out, s[:size:size])
	}
	return append(out, s)
}
