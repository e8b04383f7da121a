package driven

import (
	"context"
	"errors"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

// ErrCredentialInvalid marks a stored token pair the provider rejects outright,
// even after a refresh attempt. The scan cycle skips the account and moves on;
// the account is never removed automatically.
var ErrCredentialInvalid = errors.New("stored credential rejected by provider")

// MailProvider defines the driven port for the mail backend. Open builds an
// authorized session for one account; token refresh happens transparently
// inside the session, and rotated tokens are persisted by the adapter.
type MailProvider interface {
	// Open authorizes a session for the account. Returns ErrCredentialInvalid
	// (possibly wrapped) when the token pair is unusable. The session's lazy
	// token refresh is bound to ctx, so ctx must outlive the session.
	Open(ctx context.Context, account model.Account) (MailSession, error)
}

// MailSession is an authorized view of a single mailbox.
type MailSession interface {
	// ListUnread returns up to max unread inbox messages. Only ID, ThreadID,
	// and Snippet are guaranteed to be populated; use Fetch for the rest.
	ListUnread(ctx context.Context, max int) ([]model.InboxMessage, error)

	// Fetch returns the full detail (headers and body) for one message.
	Fetch(ctx context.Context, id string) (*model.InboxMessage, error)

	// SendReply delivers body as an in-thread reply to the given message.
	SendReply(ctx context.Context, msg model.InboxMessage, body string) error

	// MarkRead clears the message's unread flag.
	MarkRead(ctx context.Context, id string) error
}
