// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/article-engine/internal/broadcast"
	"github.com/pdiddy/article-engine/internal/session"
	"github.com/pdiddy/article-engine/pkg/types"
)

// SessionStore is everything the Service needs from the session store.
type SessionStore interface {
	Store
	Create(ctx context.Context, parentID, outline string) (*types.GenerationSession, error)
	Get(ctx context.Context, id string) (*types.GenerationSession, error)
	MarkInterrupted(ctx context.Context, reason string) (int, error)
}

// Service is the inbound surface of the engine.
type Service struct {
	store  SessionStore
	orch   *Orchestrator
	events *broadcast.Broadcaster
	logger *log.Logger

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// NewService wires a Service. deps.Store must be the same store passed as
// store.
func NewService(store SessionStore, deps Deps) *Service {
	deps.Store = store
	orch := New(deps)
	return &Service{
		store:   store,
		orch:    orch,
		events:  orch.deps.Events,
		logger:  orch.deps.Logger,
		running: make(map[string]struct{}),
	}
}

// StartSession creates an initializing session and returns its id.
func (s *Service) StartSession(ctx context.Context, parentID, outline string) (string, error) {
	sess, err := s.store.Create(ctx, parentID, outline)
	if err != nil {
		return "", err
	}
	s.logger.Info("session created", "session", sess.ID, "parent", parentID, "version", sess.Version)
	return sess.ID, nil
}

// PerformGeneration runs the whole pipeline for an initializing session and
// blocks until it reaches completed or failed.
func (s *Service) PerformGeneration(ctx context.Context, sessionID string) error {
	if !s.claim(sessionID) {
		return fmt.Errorf("%w: %s", types.ErrAlreadyRunning, sessionID)
	}
	defer s.release(sessionID)

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	switch sess.Status {
	case types.StatusInitializing:
	case types.StatusOrchestrating:
		return fmt.Errorf("%w: %s", types.ErrAlreadyRunning, sessionID)
	default:
		return fmt.Errorf("%w: %s is %s", types.ErrSessionFinalized, sessionID, sess.Status)
	}

	return s.orch.Run(ctx, sess)
}

// Launch runs PerformGeneration in the background. The channel receives
// its result and is then closed.
func (s *Service) Launch(ctx context.Context, sessionID string) <-chan error {
	done := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		done <- s.PerformGeneration(ctx, sessionID)
	}()
	return done
}

// Wait blocks until every launched generation has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// GetSessionProgress returns the polling view of a session.
func (s *Service) GetSessionProgress(ctx context.Context, sessionID string) (types.Progress, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return types.Progress{}, err
	}
	return types.ProgressOf(sess), nil
}

// Register attaches a live event sink to a session.
func (s *Service) Register(sessionID string, sink broadcast.Sink) {
	s.events.Register(sessionID, sink)
}

// Unregister detaches the session's sink.
func (s *Service) Unregister(sessionID string) {
	s.events.Unregister(sessionID)
}

// RecoverInterrupted fails sessions left orchestrating by a process that
// died. Call it at startup, before any generation is launched.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	n, err := s.store.MarkInterrupted(ctx, "interrupted: process exited during generation")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("failed interrupted sessions", "count", n)
	}
	return n, nil
}

func (s *Service) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[id]; busy {
		return false
	}
	s.running[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

var _ SessionStore = (*session.Store)(nil)
