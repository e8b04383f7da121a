package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

// ErrAccountNotFound is returned by AccountStore operations that target a
// mailbox address with no stored account.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore defines the driven port for connected-mailbox persistence.
// The adapter layer encrypts tokens at rest; this interface operates on
// plaintext values at the domain boundary.
type AccountStore interface {
	// Upsert inserts the account or, when a row for the same address already
	// exists, rotates its tokens and timestamps in place. Preferences are
	// taken from the given account on insert and preserved on update.
	Upsert(ctx context.Context, account model.Account) error

	// GetByEmail retrieves a single account. Returns nil, nil when no
	// account exists for that address.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)

	// ListAll returns every connected account, ordered by address.
	ListAll(ctx context.Context) ([]model.Account, error)

	// UpdatePreferences sets the reply language, tone, and auto-send flag.
	// Returns ErrAccountNotFound when no account exists for the address.
	UpdatePreferences(ctx context.Context, email, language, tone string, autoSend bool) error

	// UpdateTokens persists a rotated token pair, typically after a
	// transparent refresh. Returns ErrAccountNotFound when the account is gone.
	UpdateTokens(ctx context.Context, email, accessToken, refreshToken string, expiry time.Time) error

	// Delete disconnects the mailbox. Deleting an unknown address is a no-op.
	Delete(ctx context.Context, email string) error
}
