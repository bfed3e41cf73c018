package ai

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-2.0-flash"
)

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Gemini calls generateContent with the image as inline data. The API key
// travels as a query parameter.
type Gemini struct {
	apiKey string
	opts   options
}

func NewGemini(apiKey string, opts ...Option) *Gemini {
	return &Gemini{apiKey: apiKey, opts: newOptions(geminiBaseURL, geminiModel, opts)}
}

func (c *Gemini) Name() string {
	return "gemini"
}

func (c *Gemini) Analyze(ctx context.Context, image []byte, mimeType string) (domain.GeneratedMetadata, error) {
	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{
		{Text: Prompt},
		{InlineData: &geminiBlob{MimeType: mimeType, Data: encodeImage(image)}},
	}}}
	req.GenerationConfig.MaxOutputTokens = maxTokens

	endpoint := c.opts.baseURL + "/models/" + url.PathEscape(c.opts.model) + ":generateContent?key=" + url.QueryEscape(c.apiKey)

	var resp geminiResponse
	if err := c.opts.postJSON(ctx, c.Name(), endpoint, nil, req, &resp); err != nil {
		return domain.GeneratedMetadata{}, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0].Text == "" {
		return domain.GeneratedMetadata{}, eris.New("gemini: no content in response")
	}
	return c.opts.parse(c.Name(), resp.Candidates[0].Content.Parts[0].Text)
}
