package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rosettalab/xlate/internal/lang"
)

// AnthropicTranslator is the production translator backed by the Anthropic
// API. It prompts for a strict JSON object so the reply can be decoded
// directly into a Translation.
type AnthropicTranslator struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewAnthropicTranslator creates the API-backed translator.
func NewAnthropicTranslator(apiKey, model string) *AnthropicTranslator {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicTranslator{
		api:   &client,
		model: anthropic.Model(model),
	}
}

const translateSystem = `You translate a single source-code fragment into a target programming language. Return ONLY a JSON object with exactly these fields:
- "target_fragment": the translated fragment, idiomatic for the target language
- "explanation": one or two sentences describing what the fragment does and any notable translation decisions

Rules:
- Translate only the given fragment; do not invent surrounding code
- Preserve identifier names where the target language allows
- Return valid JSON only, no markdown fencing or commentary`

// Translate sends the fragment to the API and decodes the JSON reply.
func (t *AnthropicTranslator) Translate(ctx context.Context, fragment, targetLanguage string) (Translation, error) {
	if strings.TrimSpace(fragment) == "" {
		return Translation{}, ErrMalformedFragment
	}
	if !lang.Known(targetLanguage) {
		return Translation{}, fmt.Errorf("%w: %s", ErrUnsupportedTarget, targetLanguage)
	}

	var sb strings.Builder
	sb.WriteString("Target language: ")
	sb.WriteString(targetLanguage)
	sb.WriteString("\n\nFragment:\n\n")
	sb.WriteString(fragment)

	msg, err := t.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     t.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: translateSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	})
	if err != nil {
		return Translation{}, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return Translation{}, fmt.Errorf("no text content in API response")
	}

	text = stripFence(text)

	var out Translation
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Translation{}, fmt.Errorf("parse translator response as JSON: %w", err)
	}
	if out.TargetFragment == "" {
		return Translation{}, fmt.Errorf("translator returned empty target fragment")
	}
	return out, nil
}

// stripFence removes markdown code fencing the model sometimes adds despite
// instructions.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
