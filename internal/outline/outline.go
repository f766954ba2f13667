// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline reads the seed text a session is started with. Plain text
// and Markdown files are used as-is; YAML files describe a structured brief
// that is rendered to text.
package outline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Brief is the structured outline format.
type Brief struct {
	Title    string    `yaml:"title"`
	Audience string    `yaml:"audience,omitempty"`
	Tone     string    `yaml:"tone,omitempty"`
	Notes    string    `yaml:"notes,omitempty"`
	Sections []Heading `yaml:"sections"`
}

// Heading is one planned section of a Brief.
type Heading struct {
	Heading string   `yaml:"heading"`
	Points  []string `yaml:"points,omitempty"`
}

// Load reads the outline at path. "-" reads from stdin.
func Load(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading outline: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var b Brief
		if err := yaml.Unmarshal(data, &b); err != nil {
			return "", fmt.Errorf("parsing outline: %w", err)
		}
		return b.Render(), nil
	default:
		return string(data), nil
	}
}

// Render formats the brief as the free-text outline sent to the model.
func (b Brief) Render() string {
	var sb strings.Builder
	if b.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	}
	if b.Audience != "" {
		fmt.Fprintf(&sb, "Audience: %s\n", b.Audience)
	}
	if b.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", b.Tone)
	}
	if b.Notes != "" {
		fmt.Fprintf(&sb, "\n%s\n", strings.TrimSpace(b.Notes))
	}
	if len(b.Sections) > 0 {
		sb.WriteString("\nSections:\n")
		for i, h := range b.Sections {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, h.Heading)
			for _, p := range h.Points {
				fmt.Fprintf(&sb, "   - %s\n", p)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
