// Package parser extracts YAML frontmatter from artifact Markdown.
package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mweide/shadowtwin/internal/models"
)

// Result holds the output of parsing artifact Markdown.
type Result struct {
	Frontmatter models.Frontmatter
	Body        string
}

// Parse splits frontmatter from the Markdown body and promotes the known
// header fields into the typed struct; unrecognized keys are preserved in
// Frontmatter.Extra.
func Parse(data []byte) *Result {
	raw, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: promote(raw),
		Body:        body,
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var raw map[string]any
	if err := yaml.Unmarshal(yamlBlock, &raw); err != nil {
		// Invalid YAML: fall back to body-only, never fail a write over a header.
		return nil, string(data)
	}

	return raw, body
}

func promote(raw map[string]any) models.Frontmatter {
	var fm models.Frontmatter
	if len(raw) == 0 {
		return fm
	}
	extra := make(map[string]any)
	for k, v := range raw {
		switch k {
		case "title":
			if s, ok := v.(string); ok {
				fm.Title = s
				continue
			}
		case "detailViewType":
			if s, ok := v.(string); ok {
				fm.DetailViewType = s
				continue
			}
		case "author":
			if s, ok := v.(string); ok {
				fm.Author = s
				continue
			}
		case "tags":
			if tags := stringSlice(v); tags != nil {
				fm.Tags = tags
				continue
			}
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		fm.Extra = extra
	}
	return fm
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
