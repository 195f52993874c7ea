package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"fiksareport/internal/httpx"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// maxNarrativeChars caps what is appended to a chat digest.
const maxNarrativeChars = 600

const narrativeSystemPrompt = `You summarize call-center fixation statistics for the team lead.
Reply with at most two short sentences in Russian. Mention the most notable change
(closures, open cards, repeats or an operator standing out). No greetings, no markdown,
no numbers that are not in the digest.`

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// callAnthropicFn is swapped in tests.
var callAnthropicFn = callAnthropic

// Narrator turns a rendered digest into a short highlight.
type Narrator struct {
	apiKey string
	model  string
	logger *zap.Logger
}

func NewNarrator(apiKey, model string, logger *zap.Logger) *Narrator {
	if model == "" {
		model = defaultAnthropicModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{apiKey: apiKey, model: model, logger: logger}
}

// Narrate asks the model for a highlight of digest. Callers treat any error
// as "no narrative"; the digest itself is never affected.
func (n *Narrator) Narrate(ctx context.Context, digest string) (string, Usage, error) {
	if strings.TrimSpace(n.apiKey) == "" {
		return "", Usage{}, errors.New("anthropic api key is not configured")
	}
	if strings.TrimSpace(digest) == "" {
		return "", Usage{}, errors.New("empty digest")
	}

	prompt := "Digest:\n\n" + digest
	n.logger.Info("llm narrative", zap.String("provider", "anthropic"), zap.String("model", n.model), zap.Int("digest_chars", len(digest)))
	text, usage, err := callAnthropicFn(ctx, n.apiKey, n.model, narrativeSystemPrompt, prompt)
	if err != nil {
		n.logger.Warn("llm narrative failed", zap.Error(err))
		return "", usage, err
	}
	text = cleanNarrative(text)
	if text == "" {
		return "", usage, errors.New("model returned an empty narrative")
	}
	n.logger.Info("llm narrative done",
		zap.Int64("tokens_in", usage.InputTokens),
		zap.Int64("tokens_out", usage.OutputTokens),
		zap.Int64("tokens_total", usage.TotalTokens()),
		zap.Int64("cache_read", usage.CacheReadInputTokens),
	)
	return text, usage, nil
}

func cleanNarrative(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "`")
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > maxNarrativeChars {
		text = strings.TrimSpace(string(r[:maxNarrativeChars])) + "…"
	}
	return text
}

func callAnthropic(ctx context.Context, apiKey, model, systemPrompt, userPrompt string) (string, Usage, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.ExternalHTTPClient()),
	)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}
