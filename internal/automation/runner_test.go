package automation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teemow/leadflow/internal/leads"
	"github.com/teemow/leadflow/internal/logging"
	"github.com/teemow/leadflow/internal/templates"
)

const agentEmail = "agent@example.com"

var header = []string{"Email", "Lead Name", "Lead Status", "Last Contact Date", "Notes"}

// leadSheet returns the sheet used by most tests, evaluated on 2024-01-10:
//
//	row 0: new, never contacted       -> welcome
//	row 1: follow-up, 5 days ago      -> follow-up
//	row 2: new, contacted yesterday   -> nothing
//	row 3: new, no email              -> skipped
//	row 4: closed                     -> nothing
//	row 5: new, unreadable date       -> welcome, data issue
func leadSheet() *leads.Table {
	return &leads.Table{
		Header: append([]string(nil), header...),
		Rows: [][]string{
			{"ana@example.com", "Ana Lopez", "New Lead", "", ""},
			{"ben@example.com", "Ben Ortiz", "Follow-up", "2024-01-05", "Welcome email sent"},
			{"cy@example.com", "Cy", "New", "2024-01-09", ""},
			{"  ", "Dee", "New Lead", "", ""},
			{"eve@example.com", "Eve", "Closed", "2023-01-01", "Bought"},
			{"fay@example.com", "Fay", "new", "not a date", ""},
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
}

func newTestRunner(t *testing.T, store TableStore, mailer MailSender, opts ...func(*Config)) (*Runner, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	cfg := Config{
		Store:      store,
		Mailer:     mailer,
		AgentEmail: agentEmail,
		Location:   time.UTC,
		Now:        fixedNow,
		Logger:     slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	r, err := NewRunner(cfg)
	require.NoError(t, err)
	return r, &logs
}

func TestNewRunner_RequiresCollaborators(t *testing.T) {
	_, err := NewRunner(Config{Mailer: &recordingMailer{}})
	assert.Error(t, err)
	_, err = NewRunner(Config{Store: &memoryStore{}})
	assert.Error(t, err)
}

func TestRun_SendsDueEmailsAndSavesSheet(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{}
	r, logs := newTestRunner(t, store, mailer)

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, TriggerCLI, res.Trigger)
	assert.Equal(t, "2024-01-10", res.Date)
	assert.Equal(t, 2, res.Welcomed)
	assert.Equal(t, 1, res.FollowedUp)
	assert.Equal(t, 3, res.Sent())
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, res.DataIssues, "unreadable date and blank email")
	assert.Equal(t, leads.Summary{Total: 6, Pending: 5, ContactedToday: 3}, res.Summary)
	assert.True(t, res.SummarySent)

	assert.Equal(t, []string{"ana@example.com", "ben@example.com", "fay@example.com", agentEmail}, mailer.recipients())
	assert.Equal(t, "Welcome to Our Service!", mailer.attempts[0].Subject)
	assert.Contains(t, mailer.attempts[0].Body, "Hi Ana,")
	assert.Equal(t, "Quick Follow-Up Regarding Your Property Interest", mailer.attempts[1].Subject)
	assert.Contains(t, mailer.attempts[1].Body, "Hi Ben Ortiz,")
	assert.Equal(t, "Daily Lead Summary", mailer.attempts[3].Subject)
	assert.Contains(t, mailer.attempts[3].Body, "Total Leads: 6")
	assert.Contains(t, mailer.attempts[3].Body, "Pending Follow-ups: 5")
	assert.Contains(t, mailer.attempts[3].Body, "Leads Contacted Today: 3")

	saved := store.lastSaved()
	require.NotNil(t, saved)
	assert.Equal(t, header, saved.Header)
	assert.Equal(t, [][]string{
		{"ana@example.com", "Ana Lopez", "New Lead", "2024-01-10", "Welcome email sent"},
		{"ben@example.com", "Ben Ortiz", "Follow-up", "2024-01-10", "Follow-up email sent"},
		{"cy@example.com", "Cy", "New", "2024-01-09", ""},
		{"  ", "Dee", "New Lead", "", ""},
		{"eve@example.com", "Eve", "Closed", "2023-01-01", "Bought"},
		{"fay@example.com", "Fay", "new", "2024-01-10", "Welcome email sent"},
	}, saved.Rows)

	assert.NotContains(t, logs.String(), "ana@example.com", "lead addresses are hashed in logs")
	assert.Contains(t, logs.String(), "data quality issue")
	assert.Contains(t, logs.String(), "lead skipped")
}

func TestRun_FollowUpPromotesNewLeadWithOldContact(t *testing.T) {
	store := &memoryStore{table: &leads.Table{
		Header: header,
		Rows:   [][]string{{"gus@example.com", "Gus", " NEW LEAD ", "01/02/2024", ""}},
	}}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer)

	res, err := r.Run(context.Background(), TriggerHTTP)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Welcomed)
	assert.Equal(t, 1, res.FollowedUp)
	assert.Equal(t, []string{"Follow-up", "2024-01-10", "Follow-up email sent"},
		store.lastSaved().Rows[0][2:5])
}

func TestRun_SendFailureLeavesRowUnchanged(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{failFor: map[string]error{
		"ben@example.com": &googleapi.Error{Code: 400, Message: "Invalid To header"},
	}}
	r, logs := newTestRunner(t, store, mailer)

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err, "a rejected recipient does not fail the run")

	assert.Equal(t, 2, res.Welcomed)
	assert.Equal(t, 0, res.FollowedUp)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Deferred)
	assert.Equal(t, 2, res.Summary.ContactedToday)
	assert.True(t, res.SummarySent)

	saved := store.lastSaved()
	assert.Equal(t, leadSheet().Rows[1], saved.Rows[1], "failed send mutates nothing")
	assert.Equal(t, "Welcome email sent", saved.Rows[5][4], "batch continued after the failure")
	assert.Contains(t, logs.String(), "failed to send email")
	assert.Contains(t, logs.String(), "row=3", "failures name the sheet row")
	assert.Contains(t, logs.String(), "user_hash="+logging.AnonymizeEmail("ben@example.com"))
	assert.NotContains(t, logs.String(), "ben@example.com")
}

func TestRun_TransientSendFailureContinuesBatch(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", &googleapi.Error{Code: 503, Message: "Backend Error"}},
		{"rate limited", &googleapi.Error{Code: 429, Message: "Too Many Requests"}},
		{"network", &url.Error{Op: "Post", URL: "https://gmail.googleapis.com", Err: errors.New("connection reset")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{table: leadSheet()}
			mailer := &recordingMailer{failFor: map[string]error{"ana@example.com": tt.err}}
			r, _ := newTestRunner(t, store, mailer)

			res, err := r.Run(context.Background(), TriggerCLI)
			require.NoError(t, err)

			assert.Equal(t, 1, res.Failed)
			assert.Equal(t, 0, res.Deferred)
			assert.Equal(t, 1, res.Welcomed)
			assert.Equal(t, 1, res.FollowedUp)
			assert.True(t, res.SummarySent)
			assert.Equal(t, []string{"ana@example.com", "ben@example.com", "fay@example.com", agentEmail}, mailer.recipients())

			saved := store.lastSaved()
			assert.Equal(t, leadSheet().Rows[0], saved.Rows[0])
			assert.Equal(t, "Follow-up email sent", saved.Rows[1][4])
		})
	}
}

func TestRun_ConsecutiveTransientFailuresStopSending(t *testing.T) {
	outage := &googleapi.Error{Code: 503, Message: "Backend Error"}
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{failFor: map[string]error{
		"ana@example.com": outage,
		"ben@example.com": outage,
	}}
	r, _ := newTestRunner(t, store, mailer, func(c *Config) { c.MaxConsecutiveTransient = 2 })

	res, err := r.Run(context.Background(), TriggerCLI)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)

	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Deferred)
	assert.False(t, res.SummarySent)
	assert.Equal(t, []string{"ana@example.com", "ben@example.com"}, mailer.recipients())
}

func TestRun_SuccessResetsTransientFailureCount(t *testing.T) {
	outage := &googleapi.Error{Code: 503, Message: "Backend Error"}
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{failFor: map[string]error{
		"ana@example.com": outage,
		"fay@example.com": outage,
	}}
	r, _ := newTestRunner(t, store, mailer, func(c *Config) { c.MaxConsecutiveTransient = 2 })

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.FollowedUp)
	assert.True(t, res.SummarySent)
}

func TestRun_MailServiceUnavailable(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{failFor: map[string]error{
		"ben@example.com": &googleapi.Error{Code: 401, Message: "Invalid Credentials"},
	}}
	r, _ := newTestRunner(t, store, mailer)

	res, err := r.Run(context.Background(), TriggerCLI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollaboratorUnavailable))
	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))

	require.NotNil(t, res)
	assert.Equal(t, 1, res.Welcomed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Deferred)
	assert.False(t, res.SummarySent)
	assert.Equal(t, []string{"ana@example.com", "ben@example.com"}, mailer.recipients(), "no sends after the outage, no summary")

	saved := store.lastSaved()
	require.NotNil(t, saved, "successful sends are still recorded")
	assert.Equal(t, "Welcome email sent", saved.Rows[0][4])
	assert.Equal(t, leadSheet().Rows[1], saved.Rows[1])
	assert.Equal(t, leadSheet().Rows[5], saved.Rows[5])
}

func TestRun_TemplateErrorCountsAsFailure(t *testing.T) {
	renderer, err := templates.NewRenderer(map[string]templates.Template{
		templates.Welcome: {Subject: "{{ missing }}"},
	})
	require.NoError(t, err)

	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer, func(c *Config) { c.Templates = renderer })

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Welcomed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.FollowedUp)
	assert.Equal(t, []string{"ben@example.com", agentEmail}, mailer.recipients())
}

func TestRun_LoadFailure(t *testing.T) {
	store := &memoryStore{loadErr: &googleapi.Error{Code: 403}}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer)

	res, err := r.Run(context.Background(), TriggerCLI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollaboratorUnavailable))
	require.NotNil(t, res)
	assert.Empty(t, mailer.attempts)
	assert.Nil(t, store.lastSaved())
}

func TestRun_MissingColumns(t *testing.T) {
	store := &memoryStore{table: &leads.Table{Header: []string{"Email", "Name"}}}
	r, _ := newTestRunner(t, store, &recordingMailer{})

	_, err := r.Run(context.Background(), TriggerCLI)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCollaboratorUnavailable))
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestRun_SaveFailure(t *testing.T) {
	store := &memoryStore{table: leadSheet(), saveErr: errors.New("quota exceeded")}
	mailer := &recordingMailer{}
	r, logs := newTestRunner(t, store, mailer)

	_, err := r.Run(context.Background(), TriggerCLI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollaboratorUnavailable))
	assert.NotContains(t, mailer.recipients(), agentEmail)
	assert.Contains(t, logs.String(), "emails were sent but the lead sheet was not updated")
}

func TestRun_SummaryFailure(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{failFor: map[string]error{agentEmail: errors.New("mailbox full")}}
	r, _ := newTestRunner(t, store, mailer)

	res, err := r.Run(context.Background(), TriggerCLI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSummaryNotSent))
	assert.False(t, errors.Is(err, ErrCollaboratorUnavailable))
	assert.False(t, res.SummarySent)
	assert.Equal(t, 3, res.Sent())
	assert.NotNil(t, store.lastSaved(), "sheet is saved before the summary")
}

func TestRun_NoAgentEmail(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer, func(c *Config) { c.AgentEmail = "" })

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.False(t, res.SummarySent)
	assert.NotContains(t, mailer.recipients(), agentEmail)
}

func TestRun_EmptySheet(t *testing.T) {
	store := &memoryStore{table: &leads.Table{Header: header}}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer)

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, leads.Summary{}, res.Summary)
	assert.Equal(t, []string{agentEmail}, mailer.recipients())
}

func TestRun_FillsDaysSinceColumn(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	r, _ := newTestRunner(t, store, &recordingMailer{}, func(c *Config) {
		c.Columns = leads.Columns{DaysSince: "Days Since Last Contact"}
	})

	_, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)

	saved := store.lastSaved()
	col := saved.ColumnIndex("Days Since Last Contact")
	require.Equal(t, 5, col)
	got := make([]string, 0, len(saved.Rows))
	for _, row := range saved.Rows {
		got = append(got, row[col])
	}
	assert.Equal(t, []string{"0", "0", "1", "999", "374", "0"}, got)
}

func TestRun_CustomDateLayout(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	r, _ := newTestRunner(t, store, &recordingMailer{}, func(c *Config) { c.DateLayout = "01/02/2006" })

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, "01/10/2024", store.lastSaved().Rows[0][3])
	assert.Equal(t, 3, res.Summary.ContactedToday, "written dates are read back as today")
}

func TestRun_DayFirstDateLayout(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer, func(c *Config) {
		c.DateLayout = "02/01/2006"
		c.Columns = leads.Columns{DaysSince: "Days Since Last Contact"}
	})

	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.ContactedToday)

	saved := store.lastSaved()
	assert.Equal(t, "10/01/2024", saved.Rows[0][3])
	assert.Equal(t, "10/01/2024", saved.Rows[1][3])
	col := saved.ColumnIndex("Days Since Last Contact")
	require.Equal(t, 5, col)
	assert.Equal(t, "0", saved.Rows[0][col])
	assert.Equal(t, "0", saved.Rows[1][col])
	assert.Equal(t, "1", saved.Rows[2][col])

	records, err := leads.Records(saved, leads.DefaultColumns())
	require.NoError(t, err)
	c := leads.Classify(records[1], fixedNow(), "02/01/2006")
	assert.Equal(t, 0, c.DaysSince)
	assert.Equal(t, leads.ActionNone, c.Action)

	again, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Welcomed+again.FollowedUp, "leads mailed today are not mailed again")
}

func TestRun_CancelledContextStillRecordsSentEmails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &memoryStore{table: leadSheet()}
	mailer := &cancellingMailer{recordingMailer: &recordingMailer{}, cancel: cancel}
	r, _ := newTestRunner(t, store, mailer)

	res, err := r.Run(ctx, TriggerCLI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, res.Welcomed)
	assert.Equal(t, 2, res.Deferred)
	assert.Equal(t, "Welcome email sent", store.lastSaved().Rows[0][4])
}

// cancellingMailer cancels the run after the first successful send.
type cancellingMailer struct {
	*recordingMailer
	cancel context.CancelFunc
}

func (m *cancellingMailer) Send(ctx context.Context, to, subject, body string) error {
	err := m.recordingMailer.Send(ctx, to, subject, body)
	m.cancel()
	return err
}

func TestRun_RejectsOverlappingRuns(t *testing.T) {
	store := &memoryStore{
		table:   leadSheet(),
		loading: make(chan struct{}),
		release: make(chan struct{}),
	}
	r, _ := newTestRunner(t, store, &recordingMailer{})

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), TriggerSchedule)
		done <- err
	}()

	<-store.loading
	assert.True(t, r.Running())
	_, err := r.Run(context.Background(), TriggerHTTP)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(store.release)
	require.NoError(t, <-done)
	assert.False(t, r.Running())
}

func TestRun_IsRepeatable(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer)

	_, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)

	// Same day, second run: everyone emailed is now contacted today.
	res, err := r.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent())
	assert.Equal(t, 3, res.Summary.ContactedToday)
}

func TestPlan(t *testing.T) {
	store := &memoryStore{table: leadSheet()}
	mailer := &recordingMailer{}
	r, _ := newTestRunner(t, store, mailer)

	preview, err := r.Plan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), preview.Date)
	actions := make([]leads.Action, 0, len(preview.Classifications))
	for _, c := range preview.Classifications {
		actions = append(actions, c.Action)
	}
	assert.Equal(t, []leads.Action{
		leads.ActionWelcome,
		leads.ActionFollowUp,
		leads.ActionNone,
		leads.ActionNone,
		leads.ActionNone,
		leads.ActionWelcome,
	}, actions)
	assert.Equal(t, leads.SkipBlankEmail, preview.Classifications[3].SkipReason)
	assert.Equal(t, leads.Summary{Total: 6, Pending: 5, ContactedToday: 0}, preview.Summary)

	assert.Empty(t, mailer.attempts)
	assert.Nil(t, store.lastSaved())
}

func TestPlan_LoadFailure(t *testing.T) {
	r, _ := newTestRunner(t, &memoryStore{loadErr: errors.New("dial tcp: timeout")}, &recordingMailer{})
	_, err := r.Plan(context.Background())
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
}

func TestToday_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	r, _ := newTestRunner(t, &memoryStore{}, &recordingMailer{}, func(c *Config) {
		c.Location = tokyo
		// 20:00 UTC on the 10th is already the 11th in Tokyo.
		c.Now = func() time.Time { return time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC) }
	})
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, tokyo), r.Today())
}
