package docs

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML header of a markdown file, delimited by "---"
// lines.
type FrontMatter struct {
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	SidebarLabel string   `yaml:"sidebar_label"`
	Slug         string   `yaml:"slug"`
	Authors      []string `yaml:"authors"`
	Tags         []string `yaml:"tags"`
}

var fence = []byte("---")

// splitFrontMatter separates the front matter from the markdown body. Files
// without front matter are returned unchanged with a zero FrontMatter.
func splitFrontMatter(src []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter
	normalized := bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, append(fence, '\n')) {
		return fm, normalized, nil
	}
	rest := normalized[len(fence)+1:]
	var header, body []byte
	switch {
	case bytes.HasPrefix(rest, append(fence, '\n')):
		body = rest[len(fence)+1:]
	case bytes.Equal(rest, fence):
	default:
		end := bytes.Index(rest, []byte("\n---\n"))
		if end < 0 {
			if !bytes.HasSuffix(rest, []byte("\n---")) {
				return fm, nil, fmt.Errorf("unterminated front matter")
			}
			end = len(rest) - len("\n---")
			header = rest[:end]
		} else {
			header = rest[:end]
			body = rest[end+len("\n---\n"):]
		}
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, nil, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, body, nil
}
