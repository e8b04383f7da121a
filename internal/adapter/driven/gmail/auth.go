package gmail

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Identity = (*Auth)(nil)

// NewOAuthConfig builds the oauth2 configuration shared by the authorization
// flow and the mail provider. Modify scope covers reading messages and
// clearing the unread label; send scope covers in-thread replies.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			gmailapi.GmailModifyScope,
			gmailapi.GmailSendScope,
		},
	}
}

// Auth implements the Identity port with Google's authorization-code flow.
type Auth struct {
	cfg *oauth2.Config
}

// NewAuth creates an Auth around the shared oauth2 configuration.
func NewAuth(cfg *oauth2.Config) *Auth {
	return &Auth{cfg: cfg}
}

// AuthCodeURL returns the Google consent URL. Offline access with forced
// consent guarantees a refresh token even on re-authorization.
func (a *Auth) AuthCodeURL(state string) string {
	return a.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token bundle.
func (a *Auth) Exchange(ctx context.Context, code string) (model.TokenBundle, error) {
	tok, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return model.TokenBundle{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	return model.TokenBundle{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// AddressForToken resolves the mailbox address the bundle authorizes via the
// Gmail profile endpoint.
func (a *Auth) AddressForToken(ctx context.Context, bundle model.TokenBundle) (string, error) {
	tok := &oauth2.Token{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		Expiry:       bundle.Expiry,
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(a.cfg.TokenSource(ctx, tok)))
	if err != nil {
		return "", fmt.Errorf("create gmail service: %w", err)
	}

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("fetch gmail profile: %w", classifyErr(err))
	}

	return profile.EmailAddress, nil
}
