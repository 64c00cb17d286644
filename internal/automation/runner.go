package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/leadflow/internal/google"
	"github.com/teemow/leadflow/internal/instrumentation"
	"github.com/teemow/leadflow/internal/leads"
	"github.com/teemow/leadflow/internal/logging"
	"github.com/teemow/leadflow/internal/templates"
)

// Triggers identify what started a run.
const (
	TriggerCLI      = "cli"
	TriggerHTTP     = "http"
	TriggerSchedule = "schedule"
)

// TableStore loads and saves the whole lead sheet.
type TableStore interface {
	LoadTable(ctx context.Context) (*leads.Table, error)
	SaveTable(ctx context.Context, table *leads.Table) error
}

// MailSender delivers one plain-text email.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config configures a Runner. Store and Mailer are required.
type Config struct {
	Store     TableStore
	Mailer    MailSender
	Templates *templates.Renderer

	Columns    leads.Columns
	DateLayout string

	// AgentEmail receives the daily summary. No summary is sent when it
	// is empty.
	AgentEmail string

	// Location is the time zone "today" is taken in. Defaults to
	// time.Local.
	Location *time.Location
	Now      func() time.Time

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// IsUnavailable decides whether a send error means the mail service
	// cannot be used at all, such as revoked credentials. Sending stops at
	// the first such error. Defaults to google.IsUnavailable.
	IsUnavailable func(error) bool

	// IsTransient decides whether a send error may not repeat, such as a
	// rate limit or a server error. It fails only that lead; sending stops
	// after MaxConsecutiveTransient of them in a row. Defaults to
	// google.IsTransient.
	IsTransient             func(error) bool
	MaxConsecutiveTransient int
}

// DefaultMaxConsecutiveTransient is the number of transient send failures
// in a row after which the mail service is considered unreachable.
const DefaultMaxConsecutiveTransient = 3

// Runner executes lead runs. It is safe for concurrent use; overlapping
// runs are rejected with ErrRunInProgress.
type Runner struct {
	cfg     Config
	logger  *slog.Logger
	running atomic.Bool
}

// NewRunner returns a Runner with defaults applied to cfg.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, errors.New("table store is required")
	}
	if cfg.Mailer == nil {
		return nil, errors.New("mail sender is required")
	}
	if cfg.Templates == nil {
		r, err := templates.NewRenderer(nil)
		if err != nil {
			return nil, err
		}
		cfg.Templates = r
	}
	cfg.Columns = cfg.Columns.WithDefaults()
	if cfg.DateLayout == "" {
		cfg.DateLayout = leads.DefaultDateLayout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IsUnavailable == nil {
		cfg.IsUnavailable = google.IsUnavailable
	}
	if cfg.IsTransient == nil {
		cfg.IsTransient = google.IsTransient
	}
	if cfg.MaxConsecutiveTransient <= 0 {
		cfg.MaxConsecutiveTransient = DefaultMaxConsecutiveTransient
	}
	return &Runner{
		cfg:    cfg,
		logger: logging.WithOperation(cfg.Logger, "automation"),
	}, nil
}

// Today returns the reference date of a run started now.
func (r *Runner) Today() time.Time {
	return leads.DateOf(r.cfg.Now().In(r.cfg.Location))
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Result describes a finished run.
type Result struct {
	RunID   string `json:"run_id"`
	Trigger string `json:"trigger"`
	Date    string `json:"date"`

	Welcomed   int `json:"welcomed"`
	FollowedUp int `json:"followed_up"`
	// Skipped counts leads that were due an email but have no address.
	Skipped int `json:"skipped"`
	// Failed counts sends the mail service rejected.
	Failed int `json:"failed"`
	// Deferred counts due leads not attempted after the mail service
	// became unavailable.
	Deferred   int `json:"deferred"`
	DataIssues int `json:"data_issues"`

	Summary     leads.Summary `json:"summary"`
	SummarySent bool          `json:"summary_sent"`

	Duration time.Duration `json:"-"`
}

// Sent returns the number of lead emails sent.
func (res *Result) Sent() int {
	return res.Welcomed + res.FollowedUp
}

// Preview is the outcome of Plan.
type Preview struct {
	Date            time.Time
	Classifications []leads.Classification
	Summary         leads.Summary
}

// Plan loads the sheet and classifies every lead without sending or
// saving anything.
func (r *Runner) Plan(ctx context.Context) (*Preview, error) {
	today := r.Today()
	table, err := r.cfg.Store.LoadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load lead sheet: %w", ErrCollaboratorUnavailable, err)
	}
	records, err := leads.Records(table, r.cfg.Columns)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Date:            today,
		Classifications: leads.Plan(records, today, r.cfg.DateLayout),
		Summary:         leads.Summarize(records, today, r.cfg.DateLayout),
	}, nil
}

// Run performs one complete run. The returned Result is non-nil unless the
// error is ErrRunInProgress; on failure it holds whatever the run got done.
func (r *Runner) Run(ctx context.Context, trigger string) (*Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := time.Now()
	today := r.Today()
	res := &Result{
		RunID:   uuid.NewString(),
		Trigger: trigger,
		Date:    today.Format(leads.DefaultDateLayout),
	}

	ctx, span := instrumentation.StartRunSpan(ctx, res.RunID, trigger)
	defer span.End()

	logger := logging.WithRun(r.logger, res.RunID)
	logger.Info("run started", "trigger", trigger, "date", res.Date)

	err := r.run(ctx, logger, today, res)
	res.Duration = time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		logger.Error("run failed", logging.Err(err), logging.Status(status), "duration", res.Duration)
	} else {
		instrumentation.SetSpanSuccess(span)
		logger.Info("run finished",
			logging.Status(status),
			"welcomed", res.Welcomed,
			"followed_up", res.FollowedUp,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"total", res.Summary.Total,
			"pending", res.Summary.Pending,
			"contacted_today", res.Summary.ContactedToday,
			"duration", res.Duration,
		)
	}
	r.cfg.Metrics.RecordRun(ctx, status, res.Duration)
	return res, err
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, today time.Time, res *Result) error {
	table, err := r.cfg.Store.LoadTable(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to load lead sheet: %w", ErrCollaboratorUnavailable, err)
	}
	records, err := leads.Records(table, r.cfg.Columns)
	if err != nil {
		return err
	}

	muts, mailErr := r.sendAll(ctx, logger, leads.Plan(records, today, r.cfg.DateLayout), today, res)

	updated, err := leads.Apply(table, r.cfg.Columns, muts)
	if err != nil {
		return err
	}
	if err := leads.FillDaysSince(updated, r.cfg.Columns, today, r.cfg.DateLayout); err != nil {
		return err
	}

	// Emails that went out must be recorded even if the run was cancelled
	// meanwhile, or the leads would be mailed again next run.
	if err := r.cfg.Store.SaveTable(context.WithoutCancel(ctx), updated); err != nil {
		if len(muts) > 0 {
			logger.Error("emails were sent but the lead sheet was not updated", "sent", len(muts), logging.Err(err))
		}
		return fmt.Errorf("%w: failed to save lead sheet: %w", ErrCollaboratorUnavailable, err)
	}
	logger.Debug("lead sheet saved", "rows", len(updated.Rows), "updated", len(muts))

	after, err := leads.Records(updated, r.cfg.Columns)
	if err != nil {
		return err
	}
	res.Summary = leads.Summarize(after, today, r.cfg.DateLayout)

	if mailErr != nil {
		return mailErr
	}
	return r.sendSummary(ctx, logger, today, res)
}

// sendAll sends the due emails in table order and returns the mutations of
// the sends that succeeded. Once the mail service is found unavailable, or
// ctx is done, no further sends are attempted and the returned error says
// why.
func (r *Runner) sendAll(ctx context.Context, logger *slog.Logger, plan []leads.Classification, today time.Time, res *Result) ([]leads.Mutation, error) {
	var (
		muts      []leads.Mutation
		stopErr   error
		transient int
	)
	for _, c := range plan {
		r.cfg.Metrics.RecordClassification(ctx, c.Action.String())
		for _, issue := range c.Issues {
			res.DataIssues++
			logger.Warn("data quality issue",
				logging.Row(issue.Row),
				"field", issue.Field,
				"value", issue.Value,
				logging.Err(issue.Err),
			)
		}

		if c.SkipReason != "" {
			res.Skipped++
			logger.Info("lead skipped", logging.Row(c.Record.Row), "reason", c.SkipReason, logging.Status(logging.StatusSkipped))
			continue
		}
		if c.Action == leads.ActionNone {
			continue
		}
		kind := emailKind(c.Action)

		if stopErr == nil && ctx.Err() != nil {
			stopErr = ctx.Err()
		}
		if stopErr != nil {
			res.Deferred++
			continue
		}

		if err := r.sendLead(ctx, c); err != nil {
			res.Failed++
			r.cfg.Metrics.RecordEmail(ctx, kind, instrumentation.StatusError)
			logger.Error("failed to send email",
				logging.Row(c.Record.Row),
				logging.Action(c.Action),
				logging.UserHash(c.Record.Email),
				logging.Domain(c.Record.Email),
				logging.Err(err),
			)
			switch {
			case r.cfg.IsUnavailable(err):
				stopErr = fmt.Errorf("%w: mail service: %w", ErrCollaboratorUnavailable, err)
			case r.cfg.IsTransient(err):
				transient++
				if transient >= r.cfg.MaxConsecutiveTransient {
					stopErr = fmt.Errorf("%w: mail service failed %d sends in a row: %w", ErrCollaboratorUnavailable, transient, err)
				}
			default:
				transient = 0
			}
			continue
		}
		transient = 0

		r.cfg.Metrics.RecordEmail(ctx, kind, instrumentation.StatusSuccess)
		switch c.Action {
		case leads.ActionWelcome:
			res.Welcomed++
		case leads.ActionFollowUp:
			res.FollowedUp++
		}
		logger.Info("email sent",
			logging.Row(c.Record.Row),
			logging.Action(c.Action),
			logging.UserHash(c.Record.Email),
			logging.Status(logging.StatusSuccess),
		)
		muts = append(muts, leads.MutationFor(c, today, r.cfg.DateLayout))
	}

	if stopErr != nil && res.Deferred > 0 {
		logger.Warn("stopped sending", "deferred", res.Deferred, logging.Err(stopErr))
	}
	return muts, stopErr
}

func (r *Runner) sendLead(ctx context.Context, c leads.Classification) error {
	msg, err := r.cfg.Templates.Render(emailKind(c.Action), leadVars(c))
	if err != nil {
		return err
	}
	return r.cfg.Mailer.Send(ctx, c.Record.Email, msg.Subject, msg.Body)
}

func (r *Runner) sendSummary(ctx context.Context, logger *slog.Logger, today time.Time, res *Result) error {
	if r.cfg.AgentEmail == "" {
		logger.Info("no agent email configured, daily summary not sent")
		return nil
	}
	msg, err := r.cfg.Templates.Render(templates.Summary, summaryVars(res.Summary, today))
	if err == nil {
		err = r.cfg.Mailer.Send(ctx, r.cfg.AgentEmail, msg.Subject, msg.Body)
	}
	if err != nil {
		r.cfg.Metrics.RecordEmail(ctx, instrumentation.EmailSummary, instrumentation.StatusError)
		return fmt.Errorf("%w: %w", ErrSummaryNotSent, err)
	}
	res.SummarySent = true
	r.cfg.Metrics.RecordEmail(ctx, instrumentation.EmailSummary, instrumentation.StatusSuccess)
	logger.Info("daily summary sent", logging.UserHash(r.cfg.AgentEmail))
	return nil
}

func emailKind(a leads.Action) string {
	if a == leads.ActionWelcome {
		return templates.Welcome
	}
	return templates.FollowUp
}

func leadVars(c leads.Classification) templates.Vars {
	return templates.Vars{
		"name":       c.Record.Name,
		"first_name": templates.FirstName(c.Record.Name),
		"email":      c.Record.Email,
		"status":     c.Record.Status,
		"days_since": c.DaysSince,
	}
}

func summaryVars(s leads.Summary, today time.Time) templates.Vars {
	return templates.Vars{
		"total":           s.Total,
		"pending":         s.Pending,
		"contacted_today": s.ContactedToday,
		"date":            today.Format(leads.DefaultDateLayout),
	}
}
