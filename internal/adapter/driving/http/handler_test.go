package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ernesco-mail/ernesco/internal/adapter/driving/http"
	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

type stubAccountStore struct {
	accounts map[string]model.Account
	listErr  error
	deleted  []string
}

func newStubAccountStore(accounts ...model.Account) *stubAccountStore {
	s := &stubAccountStore{accounts: make(map[string]model.Account)}
	for _, a := range accounts {
		s.accounts[a.EmailAddress] = a
	}
	return s
}

func (s *stubAccountStore) Upsert(_ context.Context, account model.Account) error {
	s.accounts[account.EmailAddress] = account
	return nil
}

func (s *stubAccountStore) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	a, ok := s.accounts[email]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *stubAccountStore) ListAll(_ context.Context) ([]model.Account, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (s *stubAccountStore) UpdatePreferences(_ context.Context, email, language, tone string, autoSend bool) error {
	a, ok := s.accounts[email]
	if !ok {
		return driven.ErrAccountNotFound
	}
	a.PreferredLanguage = language
	a.PreferredTone = tone
	a.AutoSend = autoSend
	s.accounts[email] = a
	return nil
}

func (s *stubAccountStore) UpdateTokens(_ context.Context, email, accessToken, refreshToken string, expiry time.Time) error {
	a, ok := s.accounts[email]
	if !ok {
		return driven.ErrAccountNotFound
	}
	a.AccessToken = accessToken
	a.RefreshToken = refreshToken
	a.TokenExpiry = expiry
	s.accounts[email] = a
	return nil
}

func (s *stubAccountStore) Delete(_ context.Context, email string) error {
	delete(s.accounts, email)
	s.deleted = append(s.deleted, email)
	return nil
}

type stubActivityStore struct {
	records []model.ActivityRecord
	listErr error
}

func (s *stubActivityStore) Append(_ context.Context, rec model.ActivityRecord) (int64, error) {
	rec.ID = int64(len(s.records) + 1)
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *stubActivityStore) Finalize(_ context.Context, id int64, status model.ActivityStatus, replyText, detail string) error {
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = status
			s.records[i].ReplyText = replyText
			s.records[i].Detail = detail
			return nil
		}
	}
	return errors.New("record not found")
}

func (s *stubActivityStore) ListByStatus(_ context.Context, status model.ActivityStatus) ([]model.ActivityRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.ActivityRecord
	for _, rec := range s.records {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubActivityStore) CountByStatus(ctx context.Context, status model.ActivityStatus) (int, error) {
	recs, err := s.ListByStatus(ctx, status)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

type stubScanner struct {
	calls int
	err   error
}

func (s *stubScanner) ScanNow(context.Context) error {
	s.calls++
	return s.err
}

type stubConnector struct {
	account *model.Account
	err     error
	code    string
}

func (s *stubConnector) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (s *stubConnector) Connect(_ context.Context, code string) (*model.Account, error) {
	s.code = code
	if s.err != nil {
		return nil, s.err
	}
	return s.account, nil
}

type testEnv struct {
	accounts *stubAccountStore
	activity *stubActivityStore
	scanner  *stubScanner
	conn     *stubConnector
	server   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts: newStubAccountStore(),
		activity: &stubActivityStore{},
		scanner:  &stubScanner{},
		conn:     &stubConnector{},
	}
	logger := slog.New(slog.DiscardHandler)
	h := httphandler.NewHandler(env.accounts, env.activity, env.scanner, env.conn, "/activity", logger)
	env.server = httphandler.NewServeMux(h, logger)
	return env
}

func (e *testEnv) do(method, target string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func TestListAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.accounts["a@example.com"] = model.Account{
		EmailAddress:      "a@example.com",
		AccessToken:       "secret-token",
		PreferredLanguage: "fr",
		PreferredTone:     "friendly",
		AutoSend:          true,
		ConnectedAt:       time.Now(),
		UpdatedAt:         time.Now(),
	}

	rec := env.do(http.MethodGet, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []httphandler.AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "a@example.com", resp[0].EmailAddress)
	assert.Equal(t, "fr", resp[0].PreferredLanguage)
	assert.True(t, resp[0].AutoSend)
	assert.NotContains(t, rec.Body.String(), "secret-token",
		"token material must never appear in API responses")
}

func TestListAccounts_StoreError(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.listErr = errors.New("db locked")

	rec := env.do(http.MethodGet, "/api/v1/accounts", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUpdatePreferences(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.accounts["a@example.com"] = model.Account{EmailAddress: "a@example.com"}

	rec := env.do(http.MethodPut, "/api/v1/accounts/a@example.com/preferences",
		`{"preferred_language":"de","preferred_tone":"formal","auto_send":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "de", resp.PreferredLanguage)
	assert.Equal(t, "formal", resp.PreferredTone)
	assert.True(t, resp.AutoSend)
}

func TestUpdatePreferences_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/api/v1/accounts/missing@example.com/preferences",
		`{"preferred_language":"de","preferred_tone":"formal"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePreferences_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.accounts["a@example.com"] = model.Account{EmailAddress: "a@example.com"}

	rec := env.do(http.MethodPut, "/api/v1/accounts/a@example.com/preferences", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPut, "/api/v1/accounts/a@example.com/preferences",
		`{"preferred_language":"","preferred_tone":"formal"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.accounts["a@example.com"] = model.Account{EmailAddress: "a@example.com"}

	rec := env.do(http.MethodDelete, "/api/v1/accounts/a@example.com", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"a@example.com"}, env.accounts.deleted)

	// Deleting an unknown address is still a 204.
	rec = env.do(http.MethodDelete, "/api/v1/accounts/other@example.com", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListActivity(t *testing.T) {
	env := newTestEnv(t)
	env.activity.records = []model.ActivityRecord{
		{ID: 1, AccountEmail: "a@example.com", Subject: "Hello", Status: model.ActivitySent, ReplyText: "Hi!"},
		{ID: 2, AccountEmail: "a@example.com", Subject: "Broken", Status: model.ActivityFailed, Detail: "generator unavailable"},
	}

	rec := env.do(http.MethodGet, "/api/v1/activity", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []httphandler.ActivityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)

	rec = env.do(http.MethodGet, "/api/v1/activity?status=failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "failed", resp[0].Status)
	assert.Equal(t, "generator unavailable", resp[0].Detail)
}

func TestListActivity_UnknownStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/activity?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCountActivity(t *testing.T) {
	env := newTestEnv(t)
	env.activity.records = []model.ActivityRecord{
		{ID: 1, Status: model.ActivitySent},
		{ID: 2, Status: model.ActivitySent},
		{ID: 3, Status: model.ActivityDrafted},
	}

	rec := env.do(http.MethodGet, "/api/v1/activity/count?status=sent", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.CountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestTriggerScan(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/scan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.scanner.calls)

	var resp httphandler.ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
}

func TestTriggerScan_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.scanner.err = errors.New("store unavailable")

	rec := env.do(http.MethodPost, "/api/v1/scan", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerScan_Redirect(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/scan?redirect=true", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/activity", rec.Header().Get("Location"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBeginAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/auth/google", "")
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	assert.Contains(t, location, "https://accounts.example.com/auth?state=")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "ernesco_oauth_state", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Contains(t, location, cookies[0].Value, "redirect state must match the cookie nonce")
}

func TestAuthCallback(t *testing.T) {
	env := newTestEnv(t)
	env.conn.account = &model.Account{EmailAddress: "user@example.com"}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=nonce&code=auth-code", nil)
	req.AddCookie(&http.Cookie{Name: "ernesco_oauth_state", Value: "nonce"})
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/activity", rec.Header().Get("Location"))
	assert.Equal(t, "auth-code", env.conn.code)
}

func TestAuthCallback_StateMismatch(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=evil&code=auth-code", nil)
	req.AddCookie(&http.Cookie{Name: "ernesco_oauth_state", Value: "nonce"})
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.conn.code, "code must not be exchanged on state mismatch")
}

func TestAuthCallback_MissingCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/auth/google/callback?state=nonce&code=auth-code", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthCallback_ExchangeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.conn.err = errors.New("invalid grant")

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=nonce&code=bad", nil)
	req.AddCookie(&http.Cookie{Name: "ernesco_oauth_state", Value: "nonce"})
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
