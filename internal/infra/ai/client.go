package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"exifai/internal/domain"
)

const maxTokens = 1000

// Option configures a backend.
type Option func(*options)

type options struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.http = hc
	}
}

// WithLogger sets the logger used for raw responses at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(baseURL, model string, opts []Option) options {
	o := options{
		baseURL: baseURL,
		model:   model,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// postJSON sends body as JSON and decodes a 200 reply into out. Any other
// status is an error carrying the response body.
func (o options) postJSON(ctx context.Context, name, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal request", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrapf(err, "%s: create request", name)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s: send request", name)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "%s: read response", name)
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("%s: unexpected status %d: %s", name, resp.StatusCode, truncate(respBody, 512))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "%s: unmarshal response", name)
	}
	return nil
}

// parse runs the lenient parser on a model reply and logs the raw text.
func (o options) parse(name, text string) (domain.GeneratedMetadata, error) {
	o.logger.Debug("raw model response", zap.String("backend", name), zap.String("text", text))
	g, err := ParseResponse(text)
	if err != nil {
		return g, eris.Wrapf(err, "%s: parse response", name)
	}
	return g, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
