// Package translate renders zoning designations in the caller's language
// using Claude. Upstream zoning labels arrive in Portuguese, Spanish, or
// German legalese; the model returns the translation plus a confidence score.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const defaultModel = "claude-haiku-4-5-20251001"

// Translator translates a zoning label into a target language.
type Translator interface {
	Translate(ctx context.Context, label, targetLanguage string) (*Translation, error)
}

// Translation is the model's output for a single label.
type Translation struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Option configures the translator.
type Option func(*sdkTranslator)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(t *sdkTranslator) {
		t.model = model
	}
}

// WithBaseURL points the SDK at a different endpoint (tests).
func WithBaseURL(u string) Option {
	return func(t *sdkTranslator) {
		t.requestOpts = append(t.requestOpts, option.WithBaseURL(u))
	}
}

type sdkTranslator struct {
	model       string
	requestOpts []option.RequestOption
	client      sdk.Client
}

// NewTranslator creates a Claude-backed translator.
func NewTranslator(apiKey string, opts ...Option) Translator {
	t := &sdkTranslator{
		model:       defaultModel,
		requestOpts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, o := range opts {
		o(t)
	}
	t.client = sdk.NewClient(t.requestOpts...)
	return t
}

const systemPrompt = `You translate land zoning and land-use designations from Portuguese, Spanish, or German planning documents. Respond with only a JSON object: {"translation": "<translated label>", "confidence": <0.0-1.0>}. Keep official terminology; do not explain.`

func (t *sdkTranslator) Translate(ctx context.Context, label, targetLanguage string) (*Translation, error) {
	if strings.TrimSpace(label) == "" {
		return nil, eris.New("translate: empty label")
	}

	prompt := fmt.Sprintf("Target language: %s\nLabel: %s", targetLanguage, label)

	msg, err := t.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(t.model),
		MaxTokens: 256,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "translate: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, eris.New("translate: empty model response")
	}

	return parseTranslation(text)
}

// parseTranslation extracts the JSON object from the model output. Models
// occasionally wrap JSON in prose; fall back to scanning for braces.
func parseTranslation(text string) (*Translation, error) {
	var out struct {
		Translation string  `json:"translation"`
		Confidence  float64 `json:"confidence"`
	}

	payload := text
	if !strings.HasPrefix(strings.TrimSpace(payload), "{") {
		start := strings.Index(payload, "{")
		end := strings.LastIndex(payload, "}")
		if start < 0 || end <= start {
			return nil, eris.Errorf("translate: no JSON in response %q", text)
		}
		payload = payload[start : end+1]
	}

	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, eris.Wrap(err, "translate: parse response")
	}
	if out.Translation == "" {
		return nil, eris.New("translate: empty translation in response")
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		out.Confidence = 0
	}

	return &Translation{Label: out.Translation, Confidence: out.Confidence}, nil
}
