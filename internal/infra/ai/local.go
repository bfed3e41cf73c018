package ai

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

const (
	localBaseURL      = "http://127.0.0.1:8765"
	modelFilename     = "model.safetensors"
	tokenizerFilename = "tokenizer.json"
)

type captionRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

type captionResponse struct {
	Caption string `json:"caption"`
}

// Local asks an on-device captioning service for a one-line caption and
// derives title and tags from it. It is unavailable until the model files
// exist in modelDir.
type Local struct {
	modelDir string
	opts     options
}

func NewLocal(modelDir string, opts ...Option) *Local {
	return &Local{modelDir: modelDir, opts: newOptions(localBaseURL, "", opts)}
}

func (c *Local) Name() string {
	return "local"
}

func (c *Local) Available() error {
	if c.modelDir == "" {
		return eris.New("local: no model directory configured")
	}
	for _, name := range []string{modelFilename, tokenizerFilename} {
		path := filepath.Join(c.modelDir, name)
		if _, err := os.Stat(path); err != nil {
			return eris.Wrapf(err, "local: model file %s missing", path)
		}
	}
	return nil
}

func (c *Local) Analyze(ctx context.Context, image []byte, mimeType string) (domain.GeneratedMetadata, error) {
	if err := c.Available(); err != nil {
		return domain.GeneratedMetadata{}, err
	}

	var resp captionResponse
	req := captionRequest{Image: encodeImage(image), MimeType: mimeType}
	if err := c.opts.postJSON(ctx, c.Name(), c.opts.baseURL+"/caption", nil, req, &resp); err != nil {
		return domain.GeneratedMetadata{}, err
	}

	caption := strings.TrimSpace(resp.Caption)
	if caption == "" {
		return domain.GeneratedMetadata{}, eris.New("local: empty caption")
	}
	return domain.GeneratedMetadata{
		Title:       buildTitle(caption),
		Description: caption,
		Tags:        extractTags(caption),
	}, nil
}

var titleStopWords = wordSet(
	"a", "an", "the", "on", "in", "at", "of", "with", "by", "from",
	"to", "for", "is", "are", "was", "were", "that", "this", "it",
	"its", "some", "very", "just",
)

var conjunctions = wordSet("and", "or", "but", "nor")

var tagStopWords = wordSet(
	"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could",
	"should", "may", "might", "shall", "can", "need", "dare", "ought",
	"used", "to", "of", "in", "for", "on", "with", "at", "by", "from",
	"as", "into", "through", "during", "before", "after", "above", "below",
	"between", "out", "off", "over", "under", "again", "further", "then",
	"once", "here", "there", "when", "where", "why", "how", "all", "both",
	"each", "few", "more", "most", "other", "some", "such", "no", "nor",
	"not", "only", "own", "same", "so", "than", "too", "very", "just",
	"because", "but", "and", "or", "if", "while", "that", "this", "it",
	"its", "which", "what", "who", "whom", "their", "them", "they", "he",
	"she", "his", "her", "we", "you", "your", "my", "me", "up", "down",
)

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func trimWord(w string) string {
	return strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// buildTitle keeps up to six meaningful words of a caption in title case:
// "trees and leaves on the ground in a park" -> "Trees and Leaves Ground Park".
func buildTitle(caption string) string {
	var words []string
	for _, w := range strings.Fields(caption) {
		trimmed := trimWord(w)
		lower := strings.ToLower(trimmed)
		if utf8.RuneCountInString(lower) <= 1 || titleStopWords[lower] {
			continue
		}
		if len(words) > 0 && conjunctions[lower] {
			words = append(words, lower)
		} else {
			words = append(words, capitalize(trimmed))
		}
		if len(words) == 6 {
			break
		}
	}
	if len(words) > 0 {
		return strings.Join(words, " ")
	}

	title := capitalize(caption)
	if len(title) > 50 {
		if pos := strings.LastIndex(title[:50], " "); pos > 0 {
			title = title[:pos]
		}
	}
	return title
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// extractTags returns up to ten distinct lower-case keywords of a caption.
func extractTags(caption string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(caption) {
		lower := strings.ToLower(trimWord(w))
		if utf8.RuneCountInString(lower) <= 2 || tagStopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		tags = append(tags, lower)
		if len(tags) == 10 {
			break
		}
	}
	return tags
}
