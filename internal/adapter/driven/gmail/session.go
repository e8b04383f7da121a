package gmail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

const unreadQuery = "is:unread in:inbox"

// session is an authorized view of a single Gmail mailbox.
type session struct {
	svc   *gmailapi.Service
	cb    *gobreaker.CircuitBreaker
	email string
}

var _ driven.MailSession = (*session)(nil)

// do funnels every API call through the shared circuit breaker.
func (s *session) do(call func() (any, error)) (any, error) {
	out, err := s.cb.Execute(call)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("gmail circuit open for %q: %w", s.email, err)
	}
	return out, err
}

// ListUnread returns up to max unread inbox messages. The list call only
// yields IDs and thread IDs; snippets come from a metadata fetch per message.
func (s *session) ListUnread(ctx context.Context, max int) ([]model.InboxMessage, error) {
	out, err := s.do(func() (any, error) {
		return s.svc.Users.Messages.List("me").
			Q(unreadQuery).
			MaxResults(int64(max)).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, fmt.Errorf("list unread for %q: %w", s.email, err)
	}

	resp := out.(*gmailapi.ListMessagesResponse)
	messages := make([]model.InboxMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		messages = append(messages, model.InboxMessage{
			ID:       m.Id,
			ThreadID: m.ThreadId,
			IsUnread: true,
		})
	}

	return messages, nil
}

// Fetch returns the full detail (headers, snippet, plain-text body) for one message.
func (s *session) Fetch(ctx context.Context, id string) (*model.InboxMessage, error) {
	out, err := s.do(func() (any, error) {
		return s.svc.Users.Messages.Get("me", id).
			Format("full").
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch message %s for %q: %w", id, s.email, err)
	}

	msg := out.(*gmailapi.Message)

	detail := model.InboxMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		IsUnread: hasLabel(msg.LabelIds, "UNREAD"),
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				detail.Subject = h.Value
			case "From":
				detail.From = h.Value
			case "Message-ID", "Message-Id":
				detail.RFCID = h.Value
			}
		}
		detail.Body = extractBody(msg.Payload)
	}

	return &detail, nil
}

// SendReply delivers body as an in-thread reply to the given message.
func (s *session) SendReply(ctx context.Context, msg model.InboxMessage, body string) error {
	raw := buildReplyMIME(msg, body)

	_, err := s.do(func() (any, error) {
		return s.svc.Users.Messages.Send("me", &gmailapi.Message{
			Raw:      raw,
			ThreadId: msg.ThreadID,
		}).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("send reply to %s for %q: %w", msg.ID, s.email, err)
	}

	slog.Debug("reply delivered", "account", s.email, "message", msg.ID, "thread", msg.ThreadID)
	return nil
}

// MarkRead clears the message's unread flag.
func (s *session) MarkRead(ctx context.Context, id string) error {
	_, err := s.do(func() (any, error) {
		return s.svc.Users.Messages.Modify("me", id, &gmailapi.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("mark read %s for %q: %w", id, s.email, err)
	}
	return nil
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
