package application_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ernesco-mail/ernesco/internal/application"
	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

func TestBuildReplyPrompt_EmbedsPreferencesAndMessage(t *testing.T) {
	account := model.Account{
		EmailAddress:      "user@example.com",
		PreferredLanguage: "fr",
		PreferredTone:     "friendly",
	}
	msg := model.InboxMessage{
		From:    "alice@example.com",
		Subject: "Rescheduling",
		Snippet: "Can we reschedule?",
	}

	prompt := application.BuildReplyPrompt(account, msg)

	assert.Contains(t, prompt, "friendly tone")
	assert.Contains(t, prompt, `"fr"`)
	assert.Contains(t, prompt, "From: alice@example.com")
	assert.Contains(t, prompt, "Subject: Rescheduling")
	assert.Contains(t, prompt, "Can we reschedule?")
}

func TestBuildReplyPrompt_DefaultsWhenPreferencesUnset(t *testing.T) {
	prompt := application.BuildReplyPrompt(model.Account{}, model.InboxMessage{Snippet: "hi"})

	assert.Contains(t, prompt, "professional tone")
	assert.Contains(t, prompt, `"en"`)
}

func TestBuildReplyPrompt_PrefersBodyOverSnippet(t *testing.T) {
	msg := model.InboxMessage{
		Body:    "the full body",
		Snippet: "the snippet",
	}

	prompt := application.BuildReplyPrompt(model.Account{}, msg)

	assert.Contains(t, prompt, "the full body")
	assert.NotContains(t, prompt, "the snippet")
}

func TestBuildReplyPrompt_TruncatesLongBodies(t *testing.T) {
	msg := model.InboxMessage{Body: strings.Repeat("é", 5000)}

	prompt := application.BuildReplyPrompt(model.Account{}, msg)

	assert.Less(t, len([]rune(prompt)), 1200)
}
