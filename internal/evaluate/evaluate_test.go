// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// mockJudge returns queued answers and errors in order.
type mockJudge struct {
	answers []string
	errs    []error
	calls   int
	prompts []string
	panics  bool
}

func (m *mockJudge) Complete(_ context.Context, system, prompt string) (string, error) {
	if m.panics {
		panic("judge exploded")
	}
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(m.answers) {
		return m.answers[i], nil
	}
	return "NO", nil
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		answer string
		want   Verdict
	}{
		{"YES", Yes},
		{"  yes.\n", Yes},
		{"Yes, the draft is complete", Yes},
		{"NO", No},
		{"no", No},
		{"", No},
		{"Maybe yes", No},
		{"The answer is YES", No},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict(tt.answer))
		})
	}
}

func TestEvaluateSeedsOutlineAndDraft(t *testing.T) {
	judge := &mockJudge{answers: []string{"YES"}}
	e := New(judge, "1. Intro\n2. Body\n3. Conclusion", 0)

	v, err := e.Evaluate(context.Background(), "Intro text\n\nBody text")
	require.NoError(t, err)
	assert.Equal(t, Yes, v)
	require.Len(t, judge.prompts, 1)
	assert.Contains(t, judge.prompts[0], "3. Conclusion")
	assert.Contains(t, judge.prompts[0], "Body text")
}

func TestEvaluateRetriesThenSucceeds(t *testing.T) {
	judge := &mockJudge{
		errs:    []error{errors.New("overloaded"), errors.New("overloaded")},
		answers: []string{"", "", "YES"},
	}
	v, err := New(judge, "outline", 2).Evaluate(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, Yes, v)
	assert.Equal(t, 3, judge.calls)
}

func TestEvaluateExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	judge := &mockJudge{errs: []error{boom, boom}}
	v, err := New(judge, "outline", 1).Evaluate(context.Background(), "draft")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, No, v)
	assert.Equal(t, 2, judge.calls)
}

func TestEvaluateRecoversPanic(t *testing.T) {
	v, err := New(&mockJudge{panics: true}, "outline", 0).Evaluate(context.Background(), "draft")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "judge exploded")
	assert.Equal(t, No, v)
}

func TestEvaluateHonorsCancelledContextBetweenRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	judge := &mockJudge{errs: []error{errors.New("fail"), errors.New("fail")}}
	_, err := New(judge, "outline", 3).Evaluate(ctx, "draft")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, judge.calls)
}
