// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate implements the advisory completion check. An Evaluator
// asks a secondary model, outside the main conversation, whether a draft is
// structurally complete with a conclusion.
package evaluate

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
)

// Verdict is the evaluator's answer.
type Verdict string

const (
	Yes Verdict = "YES"
	No  Verdict = "NO"
)

// Judge performs one independent model call.
type Judge interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = "You are an editor reviewing a long-form article while it is being written. You answer with a single word: YES or NO."

var judgePromptTmpl = template.Must(template.New("judge").Parse(`The article was planned with this outline:

{{.Outline}}

Here is the draft written so far:

{{.Draft}}

Is this draft structurally complete, covering the planned outline and ending with a conclusion? Answer YES or NO only.`))

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Evaluator judges drafts against the outline inferred during planning.
type Evaluator struct {
	judge      Judge
	outline    string
	maxRetries int
}

// New creates an Evaluator seeded with the planning response. maxRetries is
// the number of extra attempts after a failed judge call.
func New(judge Judge, outline string, maxRetries int) *Evaluator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Evaluator{judge: judge, outline: outline, maxRetries: maxRetries}
}

// Evaluate returns Yes only when the judge affirms completion. A panic in
// the judge is recovered and reported as an error; callers treat any error
// as No.
func (e *Evaluator) Evaluate(ctx context.Context, draft string) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = No, fmt.Errorf("evaluator panic: %v", r)
		}
	}()

	prompt, err := renderPrompt(e.outline, draft)
	if err != nil {
		return No, fmt.Errorf("rendering prompt: %w", err)
	}

	answer, err := callWithRetry(ctx, e.judge, prompt, e.maxRetries)
	if err != nil {
		return No, err
	}
	return ParseVerdict(answer), nil
}

// ParseVerdict maps a free-text answer to a Verdict. Anything that does not
// start with YES, ignoring case and surrounding space, is No.
func ParseVerdict(answer string) Verdict {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(answer)), string(Yes)) {
		return Yes
	}
	return No
}

func renderPrompt(outline, draft string) (string, error) {
	var buf bytes.Buffer
	data := struct{ Outline, Draft string }{Outline: outline, Draft: draft}
	if err := judgePromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// callWithRetry calls the judge with exponential backoff.
func callWithRetry(ctx context.Context, judge Judge, prompt string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		answer, err := judge.Complete(ctx, systemPrompt, prompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
