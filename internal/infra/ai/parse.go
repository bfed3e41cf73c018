package ai

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"exifai/internal/domain"
)

// ErrUnparsable is returned when no candidate in a model reply decodes.
var ErrUnparsable = eris.New("ai: could not parse response as JSON")

type response struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Tags        []string     `json:"tags"`
	GPS         *responseGPS `json:"gps"`
	Subject     []string     `json:"subject"`
}

type responseGPS struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ParseResponse decodes a model reply leniently. Candidates are tried in
// order: the body of a markdown fence, the outermost braces, the braces with
// bare values quoted, then the whole text. Each is decoded strictly and then
// again with trailing commas removed. As a last resort the first candidate is
// read as a generic object and the known keys are picked out.
func ParseResponse(text string) (domain.GeneratedMetadata, error) {
	candidates := jsonCandidates(strings.TrimSpace(text))

	for _, c := range candidates {
		if r, ok := decodeStrict(c); ok {
			return r.generated(), nil
		}
		if r, ok := decodeStrict(fixTrailingCommas(c)); ok {
			return r.generated(), nil
		}
	}

	if len(candidates) > 0 {
		var v any
		if err := json.Unmarshal([]byte(candidates[0]), &v); err == nil {
			if g, ok := fromValue(v); ok {
				return g, nil
			}
		}
	}
	return domain.GeneratedMetadata{}, ErrUnparsable
}

func decodeStrict(candidate string) (response, bool) {
	var r response
	if !strings.HasPrefix(strings.TrimSpace(candidate), "{") {
		return r, false
	}
	if err := json.Unmarshal([]byte(candidate), &r); err != nil {
		return r, false
	}
	return r, true
}

func (r response) generated() domain.GeneratedMetadata {
	var g domain.GeneratedMetadata
	if r.Title != nil {
		g.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		g.Description = strings.TrimSpace(*r.Description)
	}
	g.Tags = domain.CleanList(r.Tags)
	g.Subject = domain.CleanList(r.Subject)
	if r.GPS != nil && r.GPS.Latitude != nil && r.GPS.Longitude != nil {
		g.GPS = coordinate(*r.GPS.Latitude, *r.GPS.Longitude)
	}
	return g
}

// coordinate drops the (0,0) placeholder models echo back from the prompt.
func coordinate(lat, lon float64) *domain.Coordinate {
	if lat == 0 && lon == 0 {
		return nil
	}
	return &domain.Coordinate{Latitude: lat, Longitude: lon}
}

func jsonCandidates(text string) []string {
	var candidates []string

	if strings.Contains(text, "```") {
		if fenced := fenceBody(text); fenced != "" {
			candidates = append(candidates, fenced)
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		extracted := text[start : end+1]
		candidates = append(candidates, extracted)
		if fixed := fixUnquotedValues(extracted); fixed != extracted {
			candidates = append(candidates, fixed)
		}
	}

	return append(candidates, text)
}

func fenceBody(text string) string {
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
		i++
	}
	i++
	var body []string
	for ; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			break
		}
		body = append(body, lines[i])
	}
	return strings.Join(body, "\n")
}

// fixUnquotedValues quotes object values that do not start like a JSON value,
// e.g. {"title": Sunset over the bay}.
func fixUnquotedValues(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case escaped:
			escaped = false
			b.WriteRune(c)
			continue
		case c == '\\' && inString:
			escaped = true
			b.WriteRune(c)
			continue
		case c == '"':
			inString = !inString
			b.WriteRune(c)
			continue
		case inString || c != ':':
			b.WriteRune(c)
			continue
		}

		b.WriteRune(c)
		for i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t') {
			i++
			b.WriteRune(runes[i])
		}
		if i+1 >= len(runes) || startsValue(runes[i+1]) {
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] != ',' && runes[j] != '}' && runes[j] != '\n' {
			j++
		}
		value := strings.TrimRightFunc(string(runes[i+1:j]), unicode.IsSpace)
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(value, `"`, `\"`))
		b.WriteByte('"')
		i = j - 1
	}
	return b.String()
}

func startsValue(r rune) bool {
	switch r {
	case '"', '{', '[', 'n', 't', 'f', '-':
		return true
	}
	return r >= '0' && r <= '9'
}

// fixTrailingCommas drops commas directly followed by a closing bracket.
func fixTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == ',':
			rest := strings.TrimLeftFunc(text[i+1:], unicode.IsSpace)
			if strings.HasPrefix(rest, "}") || strings.HasPrefix(rest, "]") {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// fromValue picks the known keys out of a generic JSON object. It fails when
// none of them carried a usable value.
func fromValue(v any) (domain.GeneratedMetadata, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.GeneratedMetadata{}, false
	}
	var g domain.GeneratedMetadata
	found := false

	if s, ok := obj["title"].(string); ok {
		g.Title = strings.TrimSpace(s)
		found = true
	}
	if s, ok := obj["description"].(string); ok {
		g.Description = strings.TrimSpace(s)
		found = true
	}
	if tags := stringList(obj["tags"]); len(tags) > 0 {
		g.Tags = tags
		found = true
	}
	if gps, ok := obj["gps"].(map[string]any); ok {
		lat, latOK := gps["latitude"].(float64)
		lon, lonOK := gps["longitude"].(float64)
		if latOK && lonOK {
			if c := coordinate(lat, lon); c != nil {
				g.GPS = c
				found = true
			}
		}
	}
	if subject := stringList(obj["subject"]); len(subject) > 0 {
		g.Subject = subject
		found = true
	}
	return g, found
}

// stringList accepts an array of strings (non-strings are skipped) or a
// single delimited string.
func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return domain.CleanList(out)
	case string:
		return domain.SplitList(t)
	default:
		return nil
	}
}
