// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package broadcast fans live progress events out to at most one subscriber
// per session. Delivery is best effort; the session store remains the
// system of record.
package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/article-engine/pkg/types"
)

// ErrSinkFull is returned by a ChannelSink whose buffer has no room.
var ErrSinkFull = errors.New("sink buffer full")

// Sink receives events for one session.
type Sink interface {
	Send(ev types.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev types.Event) error

// Send calls f(ev).
func (f SinkFunc) Send(ev types.Event) error { return f(ev) }

// entry wraps a registered sink so that a failed push only removes the
// registration it wrote to, not a newer one for the same session.
type entry struct {
	sink Sink
}

// Broadcaster owns the session-to-sink registry.
type Broadcaster struct {
	mu     sync.Mutex
	sinks  map[string]*entry
	logger *log.Logger
	now    func() time.Time
}

// New creates an empty Broadcaster.
func New(logger *log.Logger) *Broadcaster {
	return &Broadcaster{
		sinks:  make(map[string]*entry),
		logger: logger,
		now:    time.Now,
	}
}

// Register attaches sink to sessionID, replacing any existing sink.
func (b *Broadcaster) Register(sessionID string, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[sessionID] = &entry{sink: sink}
}

// Unregister detaches whatever sink is attached to sessionID.
func (b *Broadcaster) Unregister(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, sessionID)
}

// Active reports whether a sink is attached to sessionID.
func (b *Broadcaster) Active(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sinks[sessionID]
	return ok
}

// Push delivers ev to the session's sink, if any. The registry lock is not
// held during the write. A failed or panicking write unregisters the sink.
func (b *Broadcaster) Push(sessionID string, ev types.Event) {
	b.mu.Lock()
	e, ok := b.sinks[sessionID]
	b.mu.Unlock()
	if !ok {
		return
	}

	ev.SessionID = sessionID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now().UTC()
	}

	if err := deliver(e.sink, ev); err != nil {
		b.mu.Lock()
		if b.sinks[sessionID] == e {
			delete(b.sinks, sessionID)
		}
		b.mu.Unlock()
		b.logger.Debug("sink dropped", "session", sessionID, "event", ev.Type, "err", err)
	}
}

// deliver calls sink.Send and turns a panic into an error.
func deliver(sink Sink, ev types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Send(ev)
}

// ChannelSink delivers events to a buffered channel without blocking.
type ChannelSink struct {
	ch chan types.Event
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan types.Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan types.Event { return s.ch }

// Send enqueues ev, or fails with ErrSinkFull.
func (s *ChannelSink) Send(ev types.Event) error {
	select {
	case s.ch <- ev:
		return nil
	default:
		return ErrSinkFull
	}
}

// Tee delivers each event to several sinks. A member that fails is dropped;
// Send fails only once no member is left.
type Tee struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewTee creates a Tee over the non-nil sinks.
func NewTee(sinks ...Sink) *Tee {
	t := &Tee{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

// Send writes ev to every remaining member.
func (t *Tee) Send(ev types.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	kept := t.sinks[:0]
	for _, s := range t.sinks {
		if err := s.Send(ev); err != nil {
			errs = append(errs, err)
			continue
		}
		kept = append(kept, s)
	}
	t.sinks = kept
	if len(t.sinks) == 0 {
		if len(errs) == 0 {
			return errors.New("tee has no sinks")
		}
		return errors.Join(errs...)
	}
	return nil
}
