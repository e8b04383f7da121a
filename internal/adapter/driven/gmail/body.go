package gmail

import (
	"encoding/base64"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	gmailapi "google.golang.org/api/gmail/v1"
)

// stripTags removes every HTML element, leaving only text content.
var stripTags = bluemonday.StrictPolicy()

// extractBody resolves a plain-text body from a message payload. Multipart
// messages are walked depth-first; a text/plain part wins over text/html,
// and HTML is stripped down to its text content.
func extractBody(payload *gmailapi.MessagePart) string {
	if plain := findPart(payload, "text/plain"); plain != "" {
		return strings.TrimSpace(plain)
	}
	if htmlBody := findPart(payload, "text/html"); htmlBody != "" {
		return htmlToText(htmlBody)
	}
	return ""
}

// findPart returns the decoded body of the first part with the given MIME type.
func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}

	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}

	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != "" {
			return found
		}
	}

	return ""
}

// decodeBody decodes Gmail's web-safe base64 body data, which arrives with or
// without padding depending on the part.
func decodeBody(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

// htmlToText strips tags from an HTML body and collapses whitespace runs so
// the result reads like a plain-text excerpt.
func htmlToText(htmlBody string) string {
	text := stripTags.Sanitize(htmlBody)
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
