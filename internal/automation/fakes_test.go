package automation

import (
	"context"
	"sync"

	"github.com/teemow/leadflow/internal/leads"
)

// memoryStore is an in-memory TableStore.
type memoryStore struct {
	mu      sync.Mutex
	table   *leads.Table
	loadErr error
	saveErr error
	saved   []*leads.Table

	// loading, when set, is closed once LoadTable is entered; LoadTable
	// then blocks until release is closed.
	loading chan struct{}
	release chan struct{}
}

func (s *memoryStore) LoadTable(ctx context.Context) (*leads.Table, error) {
	if s.loading != nil {
		close(s.loading)
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.table.Clone(), nil
}

func (s *memoryStore) SaveTable(ctx context.Context, t *leads.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, t.Clone())
	s.table = t.Clone()
	return nil
}

func (s *memoryStore) lastSaved() *leads.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

type sentMail struct {
	To, Subject, Body string
}

// recordingMailer records every send attempt and fails the addresses in
// failFor.
type recordingMailer struct {
	mu       sync.Mutex
	attempts []sentMail
	failFor  map[string]error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, sentMail{To: to, Subject: subject, Body: body})
	if err, ok := m.failFor[to]; ok {
		return err
	}
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.attempts))
	for _, a := range m.attempts {
		out = append(out, a.To)
	}
	return out
}
