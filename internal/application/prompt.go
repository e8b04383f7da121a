package application

import (
	"fmt"
	"strings"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

// maxExcerptRunes bounds how much of a message body is embedded in a prompt.
const maxExcerptRunes = 1000

// BuildReplyPrompt constructs the generation prompt for one message, embedding
// the account's reply tone and language (with their defaults applied) and a
// bounded excerpt of the message.
func BuildReplyPrompt(account model.Account, msg model.InboxMessage) string {
	excerpt := msg.Body
	if excerpt == "" {
		excerpt = msg.Snippet
	}
	excerpt = truncateRunes(excerpt, maxExcerptRunes)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a reply to the email below in a %s tone.\n", account.Tone())
	fmt.Fprintf(&b, "Respond in the language with code %q.\n", account.Language())
	b.WriteString("Return only the reply body, with no subject line and no placeholders.\n\n")
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "Subject: %s\n\n", msg.Subject)
	b.WriteString(excerpt)

	return b.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
