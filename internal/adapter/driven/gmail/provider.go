// Package gmail implements the MailProvider and Identity driven ports on the
// Gmail REST API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MailProvider = (*Provider)(nil)

// Provider opens authorized Gmail sessions for stored accounts. All API calls
// run through a shared circuit breaker so a provider outage trips fast instead
// of stalling every account in the cycle.
type Provider struct {
	oauth       *oauth2.Config
	accounts    driven.AccountStore
	cb          *gobreaker.CircuitBreaker
	callTimeout time.Duration

	// clientOpts lets tests point the service at a fake API endpoint.
	clientOpts []option.ClientOption
}

// NewProvider creates a Provider. accounts receives rotated tokens whenever a
// session refreshes its access token. callTimeout bounds the credential
// validation call made while opening a session.
func NewProvider(oauthCfg *oauth2.Config, accounts driven.AccountStore, callTimeout time.Duration) *Provider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gmail",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Provider{oauth: oauthCfg, accounts: accounts, cb: cb, callTimeout: callTimeout}
}

// Open builds an authorized session for the account and validates it with a
// profile lookup, so a rejected credential surfaces here rather than halfway
// through message processing.
//
// The token source is bound to ctx and refreshes lazily on later session
// calls, so ctx must stay valid for the session's whole lifetime. Only the
// validation call is bounded by the provider's call timeout.
func (p *Provider) Open(ctx context.Context, account model.Account) (driven.MailSession, error) {
	tok := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		Expiry:       account.TokenExpiry,
	}
	// Without a known expiry the oauth2 transport would never refresh and an
	// expired access token would 401 every call. Treat the token as expired so
	// a fresh one is minted from the refresh token on first use.
	if tok.Expiry.IsZero() && tok.RefreshToken != "" {
		tok.Expiry = time.Now().Add(-time.Minute)
	}

	source := &persistingTokenSource{
		ctx:      ctx,
		base:     p.oauth.TokenSource(ctx, tok),
		accounts: p.accounts,
		email:    account.EmailAddress,
		last:     tok,
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.ReuseTokenSource(tok, source)),
	}, p.clientOpts...)

	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service for %q: %w", account.EmailAddress, err)
	}

	sess := &session{svc: svc, cb: p.cb, email: account.EmailAddress}

	vctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	if _, err := sess.do(func() (any, error) {
		return svc.Users.GetProfile("me").Context(vctx).Do()
	}); err != nil {
		return nil, fmt.Errorf("authorize mailbox %q: %w", account.EmailAddress, classifyErr(err))
	}

	return sess, nil
}

// persistingTokenSource wraps the refreshing token source and writes rotated
// tokens back to the account store, so the next cycle starts from the fresh
// pair instead of refreshing again.
type persistingTokenSource struct {
	ctx      context.Context
	base     oauth2.TokenSource
	accounts driven.AccountStore
	email    string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		refresh := tok.RefreshToken
		if refresh == "" && s.last != nil {
			// Google omits the refresh token on refresh responses; keep the old one.
			refresh = s.last.RefreshToken
		}
		if err := s.accounts.UpdateTokens(s.ctx, s.email, tok.AccessToken, refresh, tok.Expiry); err != nil {
			slog.Warn("failed to persist rotated tokens", "account", s.email, "error", err)
		}
		s.last = tok
	}

	return tok, nil
}

// classifyErr maps provider failures onto the domain taxonomy: outright token
// rejection becomes ErrCredentialInvalid, everything else stays transient.
func classifyErr(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" ||
			(rerr.Response != nil && (rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized)) {
			return fmt.Errorf("%w: %v", driven.ErrCredentialInvalid, err)
		}
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %v", driven.ErrCredentialInvalid, err)
	}

	return err
}
