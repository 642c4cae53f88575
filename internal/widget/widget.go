// Package widget implements the client-side chat core used by the embedded
// website widget: conversation state, quick-reply suggestions, request
// cancellation and the escalation poll loop. It is UI-agnostic; a frontend
// renders Turns and calls Ask.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/BobOttley/more-house-human/internal/quickreply"
	"github.com/BobOttley/more-house-human/internal/session"
	"github.com/BobOttley/more-house-human/internal/topic"
)

// ErrSuperseded reports that a newer question was asked before this one
// resolved; its reply was discarded.
var ErrSuperseded = errors.New("widget: ask superseded by a newer question")

const (
	welcomeQuery    = "__welcome__"
	apologyText     = "Sorry, something went wrong reaching the school. Please try again."
	pollTimeoutText = "We haven't heard back yet. Please try again later or email the school office."
)

// Turn is one rendered entry in the conversation.
type Turn struct {
	Role        session.Role
	Text        string
	URL         string
	LinkLabel   string
	Suggestions []quickreply.QuickReply
	At          time.Time
}

// Options tunes the escalation poll loop.
type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int
}

// State is the widget's conversation state. Safe for concurrent use; at most
// one Ask is in flight at a time, with newer questions superseding older ones.
type State struct {
	adapter         Adapter
	buckets         []quickreply.Bucket
	used            *quickreply.UsedSet
	pollInterval    time.Duration
	maxPollAttempts int

	mu             sync.Mutex
	sessionID      string
	turns          []Turn
	gen            uint64
	cancelInflight context.CancelFunc
	waiting        bool
	stopPoll       context.CancelFunc
}

// New creates widget state over the given transport.
func New(adapter Adapter, opts Options) *State {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = 60
	}
	return &State{
		adapter:         adapter,
		buckets:         quickreply.DefaultBuckets(),
		used:            quickreply.NewUsedSet(),
		pollInterval:    opts.PollInterval,
		maxPollAttempts: opts.MaxPollAttempts,
	}
}

// Open fetches the greeting and seeds the opening suggestion list. The
// welcome exchange is not shown as a visitor turn.
func (s *State) Open(ctx context.Context) error {
	reply, sid, err := s.adapter.Ask(ctx, s.SessionID(), welcomeQuery)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sid != "" {
		s.sessionID = sid
	}
	s.turns = append(s.turns, Turn{
		Role:        session.RoleForSource(reply.Source),
		Text:        reply.Text,
		Suggestions: quickreply.Rank(s.buckets, topic.Admissions, s.used),
		At:          time.Now(),
	})
	return nil
}

// Ask sends one visitor question. A question asked while an earlier one is
// still in flight cancels it; the earlier call returns ErrSuperseded and its
// reply never reaches the transcript. A system-sourced reply means the
// question was escalated, which starts the status poll loop.
func (s *State) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("widget: empty question")
	}

	s.mu.Lock()
	s.gen++
	myGen := s.gen
	if s.cancelInflight != nil {
		s.cancelInflight()
	}
	s.stopPollLocked()
	s.waiting = false

	askCtx, cancel := context.WithCancel(ctx)
	s.cancelInflight = cancel
	s.turns = append(s.turns, Turn{Role: session.RoleVisitor, Text: question, At: time.Now()})
	s.used.Mark(question)
	tag := topic.Classify(question)
	sid := s.sessionID
	s.mu.Unlock()

	reply, newSID, err := s.adapter.Ask(askCtx, sid, question)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if myGen != s.gen {
		return ErrSuperseded
	}
	s.cancelInflight = nil

	if err != nil {
		s.turns = append(s.turns, Turn{Role: session.RoleSystem, Text: apologyText, At: time.Now()})
		return err
	}
	if newSID != "" {
		s.sessionID = newSID
	}

	t := Turn{
		Role:      session.RoleForSource(reply.Source),
		Text:      reply.Text,
		URL:       reply.URL,
		LinkLabel: reply.LinkLabel,
		At:        time.Now(),
	}
	if reply.Source == session.SourceBot {
		t.Suggestions = quickreply.Rank(s.buckets, tag, s.used)
	}
	s.turns = append(s.turns, t)

	if reply.Source == session.SourceSystem {
		s.startWaitLocked(myGen)
	}
	return nil
}

// HandlePush accepts a reply pushed by the transport outside the ask cycle.
// A human reply resolves the active wait exactly once even when a status poll
// races it; pushes while no wait is active append directly.
func (s *State) HandlePush(text string, src session.Source) {
	if src != session.SourceHuman || text == "" {
		return
	}

	s.mu.Lock()
	gen := s.gen
	waiting := s.waiting
	s.mu.Unlock()

	if waiting {
		// First resolver wins; if the poll got there first this push is a
		// duplicate of the same queued reply and is dropped.
		s.resolveWait(gen, text)
		return
	}

	s.mu.Lock()
	s.turns = append(s.turns, Turn{Role: session.RoleHuman, Text: text, At: time.Now()})
	s.mu.Unlock()
}

// Turns returns a copy of the conversation so far.
func (s *State) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// SessionID returns the current session ID, empty before first contact.
func (s *State) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Waiting reports whether the widget is polling for a human reply.
func (s *State) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

// Close cancels any in-flight ask and stops the poll loop.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelInflight != nil {
		s.cancelInflight()
		s.cancelInflight = nil
	}
	s.stopPollLocked()
	s.waiting = false
}

func (s *State) startWaitLocked(gen uint64) {
	s.waiting = true
	pollCtx, cancel := context.WithCancel(context.Background())
	s.stopPoll = cancel
	go s.poll(pollCtx, gen)
}

func (s *State) stopPollLocked() {
	if s.stopPoll != nil {
		s.stopPoll()
		s.stopPoll = nil
	}
}

// poll asks the transport for a queued human reply at a fixed interval until
// one arrives, the wait is superseded, or the attempt budget runs out.
func (s *State) poll(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < s.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		text, src, err := s.adapter.Status(ctx, s.SessionID())
		if err != nil {
			// Transient transport failures burn an attempt but keep polling.
			continue
		}
		if src == session.SourceHuman && text != "" {
			s.resolveWait(gen, text)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting && gen == s.gen {
		s.waiting = false
		s.stopPollLocked()
		s.turns = append(s.turns, Turn{Role: session.RoleSystem, Text: pollTimeoutText, At: time.Now()})
	}
}

// resolveWait appends the human reply and ends the wait, unless a newer ask
// superseded it or the other delivery path already resolved it.
func (s *State) resolveWait(gen uint64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.waiting || gen != s.gen {
		return false
	}
	s.waiting = false
	s.stopPollLocked()
	s.turns = append(s.turns, Turn{Role: session.RoleHuman, Text: text, At: time.Now()})
	return true
}
