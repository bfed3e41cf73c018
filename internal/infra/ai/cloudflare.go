package ai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

const (
	cloudflareBaseURL = "https://api.cloudflare.com/client/v4"
	cloudflareModel   = "@cf/llava-hf/llava-1.5-7b-hf"
)

type cloudflareRequest struct {
	Messages []cloudflareMessage `json:"messages"`
	Image    string              `json:"image"`
}

type cloudflareMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cloudflareResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Response string `json:"response"`
	} `json:"result"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Cloudflare runs a Workers AI vision model.
type Cloudflare struct {
	accountID string
	apiToken  string
	opts      options
}

func NewCloudflare(accountID, apiToken string, opts ...Option) *Cloudflare {
	return &Cloudflare{
		accountID: accountID,
		apiToken:  apiToken,
		opts:      newOptions(cloudflareBaseURL, cloudflareModel, opts),
	}
}

func (c *Cloudflare) Name() string {
	return "cloudflare"
}

func (c *Cloudflare) Analyze(ctx context.Context, image []byte, _ string) (domain.GeneratedMetadata, error) {
	req := cloudflareRequest{
		Messages: []cloudflareMessage{{Role: "user", Content: Prompt}},
		Image:    encodeImage(image),
	}
	endpoint := c.opts.baseURL + "/accounts/" + c.accountID + "/ai/run/" + c.opts.model

	var resp cloudflareResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiToken}
	if err := c.opts.postJSON(ctx, c.Name(), endpoint, headers, req, &resp); err != nil {
		return domain.GeneratedMetadata{}, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return domain.GeneratedMetadata{}, eris.Errorf("cloudflare: %s", strings.Join(msgs, "; "))
	}
	if resp.Result.Response == "" {
		return domain.GeneratedMetadata{}, eris.New("cloudflare: no content in response")
	}
	return c.opts.parse(c.Name(), resp.Result.Response)
}
