package driven

import (
	"context"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

// Identity defines the driven port for the authorization-code handshake with
// the identity provider. The core consumes the resulting token bundle and the
// mailbox address it belongs to.
type Identity interface {
	// AuthCodeURL returns the provider consent URL carrying the given
	// anti-forgery state value.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token bundle.
	Exchange(ctx context.Context, code string) (model.TokenBundle, error)

	// AddressForToken resolves the mailbox address the bundle authorizes.
	AddressForToken(ctx context.Context, bundle model.TokenBundle) (string, error)
}
