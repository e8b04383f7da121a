package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

// buildReplyMIME assembles an RFC 2822 reply message and returns it in the
// web-safe base64 form the Gmail send endpoint expects. In-Reply-To and
// References carry the original Message-ID so the reply threads correctly on
// the recipient side; ThreadId handles threading on the Gmail side.
func buildReplyMIME(msg model.InboxMessage, body string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "To: %s\r\n", msg.From)
	fmt.Fprintf(&b, "Subject: %s\r\n", replySubject(msg.Subject))
	if msg.RFCID != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", msg.RFCID)
		fmt.Fprintf(&b, "References: %s\r\n", msg.RFCID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// replySubject prefixes "Re: " unless the subject already carries it.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
