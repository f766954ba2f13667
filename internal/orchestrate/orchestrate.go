// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate sequences the prompts that turn an outline into a
// finished article. A run walks Planning, TitleIntro and the writing loop,
// persisting every state change before announcing it.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/article-engine/internal/broadcast"
	"github.com/pdiddy/article-engine/internal/content"
	"github.com/pdiddy/article-engine/internal/conversation"
	"github.com/pdiddy/article-engine/internal/docstore"
	"github.com/pdiddy/article-engine/internal/evaluate"
	"github.com/pdiddy/article-engine/internal/guard"
	"github.com/pdiddy/article-engine/internal/session"
	"github.com/pdiddy/article-engine/pkg/types"
)

// Metadata keys written during a run.
const (
	MetaPhase              = "phase"
	MetaEstimatedSections  = "estimated_sections"
	MetaDocumentStoreError = "document_store_error"
	MetaStopReason         = "stop_reason"
)

// Store is the subset of the session store a run writes to.
type Store interface {
	Update(ctx context.Context, id string, p session.Patch) error
	SaveTranscript(ctx context.Context, id string, turns []types.Turn) error
}

// Deps wires an Orchestrator.
type Deps struct {
	Store     Store
	Provider  conversation.Provider
	Documents docstore.DocumentStore
	Events    *broadcast.Broadcaster
	Logger    *log.Logger
	Config    types.OrchestrationConfig

	// EvaluatorRetries is the number of extra attempts for a failed
	// completion check.
	EvaluatorRetries int
}

// Orchestrator runs generation sessions. It is safe for concurrent use;
// each Run owns its own conversation.
type Orchestrator struct {
	deps Deps
	cfg  types.OrchestrationConfig
	now  func() time.Time
}

// New creates an Orchestrator. A nil Documents drops finished articles.
func New(deps Deps) *Orchestrator {
	if deps.Documents == nil {
		deps.Documents = docstore.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Events == nil {
		deps.Events = broadcast.New(deps.Logger)
	}
	return &Orchestrator{deps: deps, cfg: deps.Config.WithDefaults(), now: time.Now}
}

// Run drives sess from initializing to completed or failed. The returned
// error is the one that failed the session; the session record already
// reflects it.
func (o *Orchestrator) Run(ctx context.Context, sess *types.GenerationSession) error {
	r := &run{
		o:      o,
		sess:   sess,
		driver: conversation.NewDriver(o.deps.Provider, systemPrompt),
		cap:    guard.NewIterationCap(o.cfg.MaxSections),
		logger: o.deps.Logger.With("session", sess.ID, "parent", sess.ParentID, "version", sess.Version),
	}

	err := r.execute(ctx)
	if err == nil {
		return nil
	}
	r.fail(ctx, err)
	return err
}

// handler runs one phase and names the next.
type handler func(r *run, ctx context.Context) (Phase, error)

var handlers = map[Phase]handler{
	Planning:           (*run).plan,
	TitleIntro:         (*run).titleIntro,
	Writing:            (*run).write,
	CheckingCompletion: (*run).checkCompletion,
	Completed:          (*run).complete,
}

// run is the state of one session's pipeline.
type run struct {
	o      *Orchestrator
	sess   *types.GenerationSession
	driver *conversation.Driver
	cap    *guard.IterationCap
	logger *log.Logger

	planText  string
	estimated int
	sections  []types.Section
	words     int

	evaluator *evaluate.Evaluator
	checked   bool
	announced Phase
	stop      string
}

func (r *run) execute(ctx context.Context) error {
	now := r.o.now().UTC()
	status := types.StatusOrchestrating
	if err := r.update(ctx, "starting session", session.Patch{Status: &status, StartedAt: &now}); err != nil {
		return err
	}
	r.push(types.Event{Type: types.EventStatus, Status: status})
	r.logger.Info("generation started")

	phase := Planning
	if err := r.enter(ctx, phase); err != nil {
		return err
	}
	for {
		next, err := handlers[phase](r, ctx)
		if err != nil {
			return err
		}
		if phase == Completed {
			return nil
		}
		if !CanMove(phase, next) {
			return fmt.Errorf("illegal phase transition %s -> %s", phase, next)
		}
		if err := r.enter(ctx, next); err != nil {
			return err
		}
		phase = next
	}
}

// enter announces a phase. CheckingCompletion is announced every time but
// never persisted; a return to the writing loop is not re-announced.
func (r *run) enter(ctx context.Context, p Phase) error {
	if !p.Persisted() {
		r.push(types.Event{Type: types.EventPhase, Phase: p.String()})
		return nil
	}
	if p == r.announced && p != Planning {
		return nil
	}
	err := r.update(ctx, "recording phase", session.Patch{Metadata: map[string]string{MetaPhase: p.String()}})
	if err != nil {
		return err
	}
	r.announced = p
	r.push(types.Event{Type: types.EventPhase, Phase: p.String()})
	r.logger.Debug("phase", "phase", p)
	return nil
}

func (r *run) plan(ctx context.Context) (Phase, error) {
	prompt, err := renderPlanningPrompt(r.sess.Outline)
	if err != nil {
		return Planning, fmt.Errorf("rendering planning prompt: %w", err)
	}
	text, err := r.send(ctx, Planning, prompt)
	if err != nil {
		return Planning, err
	}

	r.planText = text
	r.estimated = max(r.o.cfg.MinSections, content.CountPlannedSections(text))
	err = r.update(ctx, "recording plan", session.Patch{
		TotalSections: &r.estimated,
		Metadata:      map[string]string{MetaEstimatedSections: strconv.Itoa(r.estimated)},
	})
	if err != nil {
		return Planning, err
	}
	r.logger.Info("planned", "estimated_sections", r.estimated, "check_after", r.threshold())
	return TitleIntro, nil
}

func (r *run) titleIntro(ctx context.Context) (Phase, error) {
	text, err := r.send(ctx, TitleIntro, titleIntroPrompt)
	if err != nil {
		return TitleIntro, err
	}

	res := content.Parse(text)
	switch {
	case res.Kind == content.Complete:
		r.stop = "sentinel"
		return Completed, nil
	case res.Kind == content.Content && res.Text != "":
		if err := r.appendSection(ctx, res.Text, method(res)); err != nil {
			return TitleIntro, err
		}
	default:
		r.warn("title and introduction could not be parsed; skipping")
	}
	return Writing, nil
}

func (r *run) write(ctx context.Context) (Phase, error) {
	if r.cap.Reached() {
		r.warn(fmt.Sprintf("section cap of %d reached; finishing article", r.cap.Max()))
		r.stop = "cap"
		return Completed, nil
	}
	if !r.checked && len(r.sections) >= r.threshold() {
		return CheckingCompletion, nil
	}
	r.checked = false

	r.cap.Take()
	text, err := r.send(ctx, Writing, continuePrompt)
	if err != nil {
		return Writing, err
	}

	res := content.Parse(text)
	switch res.Kind {
	case content.Complete:
		r.stop = "sentinel"
		return Completed, nil
	case content.Content:
		if res.Text == "" {
			r.warn("empty section response; nothing appended")
			return Writing, nil
		}
		if err := r.appendSection(ctx, res.Text, method(res)); err != nil {
			return Writing, err
		}
	default:
		salvaged := content.StripMarkers(text)
		if salvaged == "" {
			r.warn("unparseable section response; nothing appended")
			return Writing, nil
		}
		r.warn("unparseable section response; keeping stripped text")
		if err := r.appendSection(ctx, salvaged, types.MethodFallbackRaw); err != nil {
			return Writing, err
		}
	}
	return Writing, nil
}

func (r *run) checkCompletion(ctx context.Context) (Phase, error) {
	r.checked = true
	if r.evaluator == nil {
		r.evaluator = evaluate.New(r.o.deps.Provider, r.planText, r.o.deps.EvaluatorRetries)
	}

	verdict, err := r.evaluator.Evaluate(ctx, r.draft())
	if err != nil {
		r.warn(fmt.Sprintf("completion check failed, continuing: %v", err))
		return Writing, nil
	}
	r.logger.Debug("completion check", "verdict", verdict, "sections", len(r.sections))
	if verdict == evaluate.Yes {
		r.stop = "evaluator"
		return Completed, nil
	}
	return Writing, nil
}

func (r *run) complete(ctx context.Context) (Phase, error) {
	article := r.draft()
	words := len(strings.Fields(article))
	total := len(r.sections)
	now := r.o.now().UTC()
	status := types.StatusCompleted

	var meta map[string]string
	if r.stop != "" {
		meta = map[string]string{MetaStopReason: r.stop}
	}
	// Terminal writes outlive the caller's context.
	ctx = context.WithoutCancel(ctx)
	err := r.update(ctx, "completing session", session.Patch{
		Status:            &status,
		TotalSections:     &total,
		CompletedSections: &total,
		TotalWordCount:    &words,
		FinalArticle:      &article,
		CompletedAt:       &now,
		Metadata:          meta,
	})
	if err != nil {
		return Completed, err
	}

	r.handOff(ctx, article, words, now)

	r.push(types.Event{
		Type:              types.EventCompleted,
		Status:            status,
		CompletedSections: total,
		TotalWordCount:    words,
	})
	r.logger.Info("generation completed", "sections", total, "words", words, "stop", r.stop)
	return Completed, nil
}

// handOff passes the finished article to the document store. Failures are
// recorded but never undo completion.
func (r *run) handOff(ctx context.Context, article string, words int, at time.Time) {
	err := r.o.deps.Documents.SaveArticle(ctx, docstore.Article{
		ParentID:    r.sess.ParentID,
		SessionID:   r.sess.ID,
		Version:     r.sess.Version,
		Markdown:    article,
		WordCount:   words,
		CompletedAt: at,
	})
	if err == nil {
		return
	}
	r.warn(fmt.Sprintf("document store hand-off failed: %v", err))
	if uerr := r.o.deps.Store.Update(context.WithoutCancel(ctx), r.sess.ID, session.Patch{
		Metadata: map[string]string{MetaDocumentStoreError: err.Error()},
	}); uerr != nil {
		r.logger.Error("recording hand-off failure", "err", uerr)
	}
}

// fail moves the session to failed. The write ignores cancellation of ctx,
// and the error event is pushed only once the failed status is stored. A
// session that is already terminal is left alone.
func (r *run) fail(ctx context.Context, cause error) {
	msg := cause.Error()
	now := r.o.now().UTC()
	status := types.StatusFailed

	err := r.o.deps.Store.Update(context.WithoutCancel(ctx), r.sess.ID, session.Patch{
		Status:       &status,
		ErrorMessage: &msg,
		CompletedAt:  &now,
	})
	switch {
	case errors.Is(err, types.ErrSessionFinalized):
		r.logger.Error("run failed after session was finalized", "err", cause)
		return
	case err != nil:
		r.logger.Error("recording failure", "err", err, "cause", cause)
		return
	}

	r.push(types.Event{Type: types.EventError, Status: status, Message: guard.Sanitize(msg)})
	r.logger.Error("generation failed", "err", cause)
}

func (r *run) send(ctx context.Context, phase Phase, prompt string) (string, error) {
	text, err := r.driver.Send(ctx, prompt, func(delta string) {
		r.push(types.Event{Type: types.EventTextDelta, Text: delta})
	})
	if err != nil {
		return "", &ModelCallError{Phase: phase, Err: err}
	}
	if err := r.o.deps.Store.SaveTranscript(ctx, r.sess.ID, r.driver.History()); err != nil {
		return "", &PersistenceError{Op: "saving transcript", Err: err}
	}
	return text, nil
}

func (r *run) appendSection(ctx context.Context, text string, m types.ExtractionMethod) error {
	sec := types.Section{Ordinal: len(r.sections) + 1, Text: text, Method: m}
	completed := sec.Ordinal
	words := r.words + len(strings.Fields(text))
	total := max(r.estimated, completed)

	err := r.update(ctx, "recording section", session.Patch{
		CompletedSections: &completed,
		TotalWordCount:    &words,
		TotalSections:     &total,
	})
	if err != nil {
		return err
	}
	r.sections = append(r.sections, sec)
	r.words = words

	r.push(types.Event{
		Type:              types.EventSectionCompleted,
		Section:           sec.Ordinal,
		Text:              sec.Text,
		CompletedSections: completed,
		TotalWordCount:    words,
	})
	r.logger.Debug("section", "ordinal", sec.Ordinal, "method", sec.Method, "words", words)
	return nil
}

// threshold is the section count after which the completion check runs.
func (r *run) threshold() int {
	return max(r.o.cfg.MinSections, int(math.Floor(r.o.cfg.CheckRatio*float64(r.estimated))))
}

func (r *run) draft() string {
	parts := make([]string, len(r.sections))
	for i, s := range r.sections {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n\n")
}

func (r *run) update(ctx context.Context, op string, p session.Patch) error {
	if err := r.o.deps.Store.Update(ctx, r.sess.ID, p); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (r *run) push(ev types.Event) {
	r.o.deps.Events.Push(r.sess.ID, ev)
}

func (r *run) warn(msg string) {
	r.logger.Warn(msg)
	r.push(types.Event{Type: types.EventWarning, Message: msg})
}

func method(res content.Result) types.ExtractionMethod {
	if res.Delimited {
		return types.MethodDelimited
	}
	return types.MethodFallbackRaw
}
