package session

import (
	"sync"
	"time"
)

// Transcript is the append-only ordered log of turns for one browser
// session. Turns are immutable once appended; reopening the widget replays
// the log in order.
type Transcript struct {
	mu    sync.Mutex
	turns []Turn
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records a turn at the current time and returns it.
func (t *Transcript) Append(role Role, text string) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	turn := Turn{Role: role, Text: text, At: time.Now()}
	t.turns = append(t.turns, turn)
	return turn
}

// Replay returns a copy of all turns in append order.
func (t *Transcript) Replay() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of recorded turns.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}

// Last returns the most recent turn and whether one exists.
func (t *Transcript) Last() (Turn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}
