package model

// InboxMessage is a provider-side unread message. It is never persisted; the
// scan cycle fetches it, replies, and flips its unread flag exactly once.
type InboxMessage struct {
	ID        string // Provider-assigned, unique within the mailbox.
	ThreadID  string
	RFCID     string // RFC 5322 Message-ID header, used for In-Reply-To threading.
	Subject   string
	From      string // Sender address as it appears in the From header.
	Snippet   string // Truncated plain-text excerpt used as generation input.
	Body      string // Full plain-text body when the detail fetch resolved one.
	IsUnread  bool
}
