// Package openai implements the ReplyGenerator driven port on the OpenAI
// chat-completions API.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"

	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReplyGenerator = (*Generator)(nil)

// Generator produces reply drafts through a chat-completion call. A circuit
// breaker fails generation fast while the API is down, so a cycle over many
// messages does not burn its per-call timeout on every one of them.
type Generator struct {
	client openai.Client
	model  openai.ChatModel
	cb     *gobreaker.CircuitBreaker
}

// NewGenerator creates a Generator for the given API key and model identifier.
func NewGenerator(apiKey, model string) *Generator {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "reply-generator",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Generator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModel(model),
		cb:     cb,
	}
}

// Generate produces a draft reply for the given prompt. All failure modes,
// including an open breaker and an empty completion, surface as
// ErrGenerationUnavailable so the scan cycle treats them uniformly.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.cb.Execute(func() (any, error) {
		return g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: g.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0.7),
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", driven.ErrGenerationUnavailable, err)
	}

	completion := out.(*openai.ChatCompletion)
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", driven.ErrGenerationUnavailable)
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: completion returned empty text", driven.ErrGenerationUnavailable)
	}

	return reply, nil
}
