package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// ConnectService handles the tail of the authorization-code flow: exchanging
// the code, resolving which mailbox the tokens belong to, and upserting the
// account. A re-authorization rotates tokens in place and keeps the stored
// preferences.
type ConnectService struct {
	identity        driven.Identity
	accounts        driven.AccountStore
	autoSendDefault bool
}

// NewConnectService creates a ConnectService. autoSendDefault seeds the
// auto-send preference for newly connected accounts.
func NewConnectService(identity driven.Identity, accounts driven.AccountStore, autoSendDefault bool) *ConnectService {
	return &ConnectService{
		identity:        identity,
		accounts:        accounts,
		autoSendDefault: autoSendDefault,
	}
}

// AuthCodeURL returns the provider consent URL for the given state value.
func (s *ConnectService) AuthCodeURL(state string) string {
	return s.identity.AuthCodeURL(state)
}

// Connect completes the handshake for an authorization code and returns the
// connected account as stored.
func (s *ConnectService) Connect(ctx context.Context, code string) (*model.Account, error) {
	bundle, err := s.identity.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("connect mailbox: %w", err)
	}

	email, err := s.identity.AddressForToken(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("resolve mailbox address: %w", err)
	}

	err = s.accounts.Upsert(ctx, model.Account{
		EmailAddress:      email,
		AccessToken:       bundle.AccessToken,
		RefreshToken:      bundle.RefreshToken,
		TokenExpiry:       bundle.Expiry,
		PreferredLanguage: model.DefaultLanguage,
		PreferredTone:     model.DefaultTone,
		AutoSend:          s.autoSendDefault,
	})
	if err != nil {
		return nil, fmt.Errorf("store account %q: %w", email, err)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("reload account %q: %w", email, err)
	}
	if account == nil {
		return nil, driven.ErrAccountNotFound
	}

	slog.Info("mailbox connected", "account", email)
	return account, nil
}
