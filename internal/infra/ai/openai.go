package ai

import (
	"context"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "gpt-4o-mini"
)

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat openAIFormat    `json:"response_format"`
}

// openAIMessage content is a string or a list of parts.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAI calls the chat completions endpoint with the image inlined as a
// data URI.
type OpenAI struct {
	apiKey string
	opts   options
}

func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	return &OpenAI{apiKey: apiKey, opts: newOptions(openAIBaseURL, openAIModel, opts)}
}

func (c *OpenAI) Name() string {
	return "openai"
}

func (c *OpenAI) Analyze(ctx context.Context, image []byte, mimeType string) (domain.GeneratedMetadata, error) {
	req := openAIRequest{
		Model: c.opts.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []openAIPart{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: &openAIImageURL{
					URL:    "data:" + mimeType + ";base64," + encodeImage(image),
					Detail: "low",
				}},
			}},
		},
		MaxTokens:      maxTokens,
		ResponseFormat: openAIFormat{Type: "json_object"},
	}

	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.opts.postJSON(ctx, c.Name(), c.opts.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return domain.GeneratedMetadata{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return domain.GeneratedMetadata{}, eris.New("openai: no content in response")
	}
	return c.opts.parse(c.Name(), resp.Choices[0].Message.Content)
}
