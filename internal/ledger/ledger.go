// Package ledger tracks every chat session known to one agent console: its
// attention status, a preview of the latest visitor message, and which
// session the agent is currently viewing. The console only observes sessions;
// ownership stays with the widget that created them.
package ledger

import (
	"log/slog"
	"sync"
)

// Status is the console attention indicator for a session.
type Status string

const (
	// StatusGrey marks a session no agent has looked at yet.
	StatusGrey Status = "grey"
	// StatusAmber marks a session awaiting agent review.
	StatusAmber Status = "amber"
	// StatusRed marks an escalated session that needs attention.
	StatusRed Status = "red"
)

// rank orders statuses for the monotonic-status discipline: an update may
// only raise a session's urgency, never lower it, until an explicit release.
func rank(s Status) int {
	switch s {
	case StatusAmber:
		return 1
	case StatusRed:
		return 2
	default:
		return 0
	}
}

// View is the per-session snapshot handed to the console UI.
type View struct {
	SessionID       string
	Preview         string
	Status          Status
	HumanControlled bool
	TakeoverEnabled bool
	ReleaseEnabled  bool
	Inbound         int
	Outbound        int
}

type entry struct {
	preview         string
	status          Status
	humanControlled bool
	inbound         int
	outbound        int
}

// Ledger is the console-side registry of sessions. All methods are safe for
// concurrent use; websocket read goroutines and the UI share it.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*entry
	current string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]*entry)}
}

// Upsert registers a session, returning true if it was newly created.
// Upserting a known session never creates a duplicate view; it only
// refreshes the preview text when one is supplied.
func (l *Ledger) Upsert(sessionID, preview string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[sessionID]; ok {
		if preview != "" {
			e.preview = preview
		}
		return false
	}
	l.entries[sessionID] = &entry{preview: preview, status: StatusGrey}
	return true
}

// SetStatus updates a session's attention indicator. Unknown sessions are a
// no-op: status events may race session creation across the channel. Stale
// updates that would lower urgency, or any update while the session is
// human-controlled, are ignored.
func (l *Ledger) SetStatus(sessionID string, status Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[sessionID]
	if !ok {
		slog.Debug("status update for unknown session", "session_id", sessionID, "status", status)
		return
	}
	if e.humanControlled {
		return
	}
	if rank(status) < rank(e.status) {
		slog.Debug("ignoring stale status update", "session_id", sessionID, "status", status, "current", e.status)
		return
	}
	e.status = status
}

// MarkHumanControlled records that an agent took the session over. From this
// point stale status events cannot touch the view until MarkReleased.
func (l *Ledger) MarkHumanControlled(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[sessionID]; ok {
		e.humanControlled = true
	}
}

// MarkReleased hands the session back to automated routing and reopens the
// status floor at amber (the visitor is still active).
func (l *Ledger) MarkReleased(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[sessionID]; ok {
		e.humanControlled = false
		e.status = StatusAmber
	}
}

// RecordInbound counts a visitor message for the session and bumps an unseen
// session to awaiting-review.
func (l *Ledger) RecordInbound(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[sessionID]; ok {
		e.inbound++
		if !e.humanControlled && e.status == StatusGrey {
			e.status = StatusAmber
		}
	}
}

// RecordOutbound counts an agent reply for the session.
func (l *Ledger) RecordOutbound(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[sessionID]; ok {
		e.outbound++
	}
}

// Select switches the currently viewed session and returns its view. The
// returned snapshot carries the button enablement for the fresh pane:
// takeover enabled while the session is escalated or unowned, release
// enabled only while human-controlled.
func (l *Ledger) Select(sessionID string) (View, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[sessionID]
	if !ok {
		return View{}, false
	}
	l.current = sessionID
	return snapshot(sessionID, e), true
}

// Get returns the view for a session without changing the selection.
func (l *Ledger) Get(sessionID string) (View, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[sessionID]
	if !ok {
		return View{}, false
	}
	return snapshot(sessionID, e), true
}

// Current returns the currently viewed session ID, empty if none selected.
func (l *Ledger) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Len returns the number of known sessions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func snapshot(sessionID string, e *entry) View {
	return View{
		SessionID:       sessionID,
		Preview:         e.preview,
		Status:          e.status,
		HumanControlled: e.humanControlled,
		TakeoverEnabled: !e.humanControlled,
		ReleaseEnabled:  e.humanControlled,
		Inbound:         e.inbound,
		Outbound:        e.outbound,
	}
}
