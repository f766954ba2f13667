// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/pdiddy/article-engine/internal/content"
)

// systemPrompt is the standing instruction for the whole conversation.
var systemPrompt = fmt.Sprintf(`You are a senior writer producing a long-form article one section at a time.

Every section you write must be wrapped exactly like this:
%s
section text in Markdown
%s

Write nothing outside the markers except when the article is finished. When every planned section, including the conclusion, has been written, reply with %s and nothing else.`,
	content.StartDelimiter, content.EndDelimiter, content.CompleteSentinel)

// planningPromptTmpl asks the model to ingest the outline and plan. The
// response is used for the section estimate and the completion check only.
var planningPromptTmpl = template.Must(template.New("planning").Parse(`Read the following outline and requirements for the article.

{{.Outline}}

Do not write the article yet. Reply with a plan: a numbered list of the sections you will write, one per line, each with a short description. End with the conclusion.`))

var titleIntroPrompt = fmt.Sprintf(`Now write the title and the introduction as the first section. Use a level-one Markdown heading for the title. Wrap the section in %s and %s.`,
	content.StartDelimiter, content.EndDelimiter)

var continuePrompt = fmt.Sprintf(`Continue with the next section of your plan. Wrap it in %s and %s. If every section, including the conclusion, is already written, reply with %s only.`,
	content.StartDelimiter, content.EndDelimiter, content.CompleteSentinel)

func renderPlanningPrompt(outline string) (string, error) {
	var buf bytes.Buffer
	if err := planningPromptTmpl.Execute(&buf, struct{ Outline string }{Outline: outline}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
