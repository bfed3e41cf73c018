package ai

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

const anthropicModel = "claude-haiku-4-5-20251001"

// Anthropic calls the Messages API through the SDK. The SDK's own retries
// are disabled; failover is the orchestrator's job.
type Anthropic struct {
	client sdk.Client
	opts   options
}

func NewAnthropic(apiKey string, opts ...Option) *Anthropic {
	o := newOptions("", anthropicModel, opts)
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(o.http),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	return &Anthropic{client: sdk.NewClient(reqOpts...), opts: o}
}

func (c *Anthropic) Name() string {
	return "anthropic"
}

func (c *Anthropic) Analyze(ctx context.Context, image []byte, mimeType string) (domain.GeneratedMetadata, error) {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return domain.GeneratedMetadata{}, eris.Errorf("anthropic: unsupported media type %s", mimeType)
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.opts.model),
		MaxTokens: maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(mimeType, encodeImage(image)),
				sdk.NewTextBlock(Prompt),
			),
		},
	})
	if err != nil {
		return domain.GeneratedMetadata{}, eris.Wrap(err, "anthropic: create message")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return domain.GeneratedMetadata{}, eris.New("anthropic: no content in response")
	}
	return c.opts.parse(c.Name(), text.String())
}
