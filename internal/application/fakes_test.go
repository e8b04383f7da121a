package application_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// --- Fake implementations of the driven ports ---

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	order    []string
	listErr  error
}

func newFakeAccountStore(accounts ...model.Account) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[string]model.Account)}
	for _, a := range accounts {
		s.accounts[a.EmailAddress] = a
		s.order = append(s.order, a.EmailAddress)
	}
	return s
}

func (s *fakeAccountStore) Upsert(_ context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[account.EmailAddress]; ok {
		existing.AccessToken = account.AccessToken
		existing.RefreshToken = account.RefreshToken
		existing.TokenExpiry = account.TokenExpiry
		s.accounts[account.EmailAddress] = existing
		return nil
	}
	s.accounts[account.EmailAddress] = account
	s.order = append(s.order, account.EmailAddress)
	return nil
}

func (s *fakeAccountStore) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[email]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (s *fakeAccountStore) ListAll(_ context.Context) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	accounts := make([]model.Account, 0, len(s.order))
	for _, email := range s.order {
		accounts = append(accounts, s.accounts[email])
	}
	return accounts, nil
}

func (s *fakeAccountStore) UpdatePreferences(_ context.Context, email, language, tone string, autoSend bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[email]
	if !ok {
		return driven.ErrAccountNotFound
	}
	account.PreferredLanguage = language
	account.PreferredTone = tone
	account.AutoSend = autoSend
	s.accounts[email] = account
	return nil
}

func (s *fakeAccountStore) UpdateTokens(_ context.Context, email, accessToken, refreshToken string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[email]
	if !ok {
		return driven.ErrAccountNotFound
	}
	account.AccessToken = accessToken
	account.RefreshToken = refreshToken
	account.TokenExpiry = expiry
	s.accounts[email] = account
	return nil
}

func (s *fakeAccountStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, email)
	return nil
}

type fakeActivityStore struct {
	mu      sync.Mutex
	records map[int64]model.ActivityRecord
	nextID  int64
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{records: make(map[int64]model.ActivityRecord)}
}

func (s *fakeActivityStore) Append(_ context.Context, rec model.ActivityRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = time.Now()
	s.records[rec.ID] = rec
	return rec.ID, nil
}

func (s *fakeActivityStore) Finalize(_ context.Context, id int64, status model.ActivityStatus, replyText, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Status != model.ActivityProcessing {
		return nil
	}
	rec.Status = status
	rec.ReplyText = replyText
	rec.Detail = detail
	s.records[id] = rec
	return nil
}

func (s *fakeActivityStore) ListByStatus(_ context.Context, status model.ActivityStatus) ([]model.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ActivityRecord
	for _, rec := range s.records {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeActivityStore) CountByStatus(ctx context.Context, status model.ActivityStatus) (int, error) {
	records, _ := s.ListByStatus(ctx, status)
	return len(records), nil
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	openErr  map[string]error
	opens    int
	openCtxs []context.Context
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions: make(map[string]*fakeSession),
		openErr:  make(map[string]error),
	}
}

func (p *fakeProvider) Open(ctx context.Context, account model.Account) (driven.MailSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	p.openCtxs = append(p.openCtxs, ctx)
	if err := p.openErr[account.EmailAddress]; err != nil {
		return nil, err
	}
	sess, ok := p.sessions[account.EmailAddress]
	if !ok {
		sess = newFakeSession()
		p.sessions[account.EmailAddress] = sess
	}
	return sess, nil
}

func (p *fakeProvider) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

func (p *fakeProvider) openContexts() []context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]context.Context(nil), p.openCtxs...)
}

type fakeSession struct {
	mu      sync.Mutex
	unread  map[string]model.InboxMessage
	sendErr error
	sent    []string
	marked  []string
}

func newFakeSession(messages ...model.InboxMessage) *fakeSession {
	s := &fakeSession{unread: make(map[string]model.InboxMessage)}
	for _, m := range messages {
		m.IsUnread = true
		s.unread[m.ID] = m
	}
	return s
}

func (s *fakeSession) ListUnread(_ context.Context, max int) ([]model.InboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.unread))
	for id := range s.unread {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []model.InboxMessage
	for _, id := range ids {
		if len(out) == max {
			break
		}
		out = append(out, s.unread[id])
	}
	return out, nil
}

func (s *fakeSession) Fetch(_ context.Context, id string) (*model.InboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.unread[id]
	if !ok {
		msg.ID = id
		msg.IsUnread = false
	}
	return &msg, nil
}

func (s *fakeSession) SendReply(_ context.Context, msg model.InboxMessage, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg.ID)
	return nil
}

func (s *fakeSession) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, id)
	s.marked = append(s.marked, id)
	return nil
}

func (s *fakeSession) markedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.marked...)
}

func (s *fakeSession) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeSession) unreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unread)
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	failOn  string // When set, err only applies to prompts containing it.
	delay   time.Duration
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	delay, err, failOn, reply := g.delay, g.err, g.failOn, g.reply
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil && (failOn == "" || strings.Contains(prompt, failOn)) {
		return "", err
	}
	return reply, nil
}

func (g *fakeGenerator) seenPrompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type fakeIdentity struct {
	bundle  model.TokenBundle
	address string
	exchErr error
}

func (i *fakeIdentity) AuthCodeURL(state string) string {
	return "https://auth.example.com/consent?state=" + state
}

func (i *fakeIdentity) Exchange(_ context.Context, _ string) (model.TokenBundle, error) {
	if i.exchErr != nil {
		return model.TokenBundle{}, i.exchErr
	}
	return i.bundle, nil
}

func (i *fakeIdentity) AddressForToken(_ context.Context, _ model.TokenBundle) (string, error) {
	return i.address, nil
}
