// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package content turns raw model responses into article sections. Parse is
// pure: it never calls the model and never touches storage.
package content

import (
	"regexp"
	"strings"
)

const (
	// StartDelimiter opens a section body in a model response.
	StartDelimiter = "<<<START>>>"

	// EndDelimiter closes a section body.
	EndDelimiter = "<<<END>>>"

	// CompleteSentinel signals that every section has been written.
	CompleteSentinel = "<<<COMPLETE>>>"
)

// delimiterFragments are the marker pieces whose presence means the model
// attempted the delimited format.
var delimiterFragments = []string{"<<<", ">>>"}

// Kind classifies a parsed response.
type Kind int

const (
	// Unparseable means a stray delimiter fragment was found without a
	// usable start/end pair.
	Unparseable Kind = iota

	// Content means Text holds a section body.
	Content

	// Complete means the response carried the completion sentinel.
	Complete
)

func (k Kind) String() string {
	switch k {
	case Content:
		return "content"
	case Complete:
		return "complete"
	default:
		return "unparseable"
	}
}

// Result is the outcome of parsing one response.
type Result struct {
	Kind Kind

	// Text is the trimmed section body when Kind is Content.
	Text string

	// Delimited reports whether Text came from between delimiters rather
	// than from the whole response.
	Delimited bool
}

// Parse classifies a raw response. The sentinel wins over delimiters when
// both appear.
func Parse(raw string) Result {
	if strings.Contains(raw, CompleteSentinel) {
		return Result{Kind: Complete}
	}

	if start := strings.Index(raw, StartDelimiter); start >= 0 {
		body := raw[start+len(StartDelimiter):]
		if end := strings.Index(body, EndDelimiter); end >= 0 {
			return Result{Kind: Content, Text: strings.TrimSpace(body[:end]), Delimited: true}
		}
	}

	if !hasFragment(raw) {
		return Result{Kind: Content, Text: strings.TrimSpace(raw)}
	}

	return Result{Kind: Unparseable}
}

func hasFragment(raw string) bool {
	for _, f := range delimiterFragments {
		if strings.Contains(raw, f) {
			return true
		}
	}
	return false
}

// StripMarkers removes every delimiter and stray marker fragment from raw
// and trims the result. The writing loop uses it to salvage prose from a
// response that failed to parse.
func StripMarkers(raw string) string {
	r := strings.NewReplacer(
		StartDelimiter, "",
		EndDelimiter, "",
		CompleteSentinel, "",
		"<<<", "",
		">>>", "",
	)
	return strings.TrimSpace(r.Replace(raw))
}

// numberedLine matches numbered list items such as "1. Intro" or "2) Body".
var numberedLine = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+\S`)

// CountPlannedSections estimates how many sections a planning response
// describes by counting numbered list lines. It is a rough heuristic.
func CountPlannedSections(raw string) int {
	return len(numberedLine.FindAllStringIndex(raw, -1))
}
