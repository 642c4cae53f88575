// Package session holds the per-session handoff protocol: who controls a chat
// session, how control moves between the automated responder and a human
// agent, and the ordered transcript of exchanged turns.
package session

import (
	"errors"
	"fmt"
	"time"
)

// Controller identifies who answers a session right now. A session has
// exactly one controller at any instant.
type Controller string

const (
	// ControllerBot routes visitor questions to the automated responder.
	ControllerBot Controller = "bot"
	// ControllerPending means escalation was signalled and the session is
	// waiting for a human to pick it up.
	ControllerPending Controller = "pending"
	// ControllerHuman routes visitor messages to the agent console only.
	ControllerHuman Controller = "human"
)

// Source tags where an answer came from.
type Source string

const (
	SourceBot    Source = "bot"
	SourceSystem Source = "system"
	SourceHuman  Source = "human"
)

// Role identifies the author of a transcript turn.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleBot     Role = "bot"
	RoleHuman   Role = "human"
	RoleSystem  Role = "system"
)

// RoleForSource maps an answer source to the transcript role it renders as.
func RoleForSource(src Source) Role {
	switch src {
	case SourceHuman:
		return RoleHuman
	case SourceSystem:
		return RoleSystem
	default:
		return RoleBot
	}
}

// Turn is one immutable entry in a session transcript.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// ErrInvalidTransition is returned when an event has no edge from the
// current controller.
var ErrInvalidTransition = errors.New("invalid handoff transition")

// Event is an inbound occurrence dispatched into the state machine. The
// concrete types below replace the callback soup of the original widget: the
// machine does not care whether an event came from a poll, a push frame, or a
// console button.
type Event interface {
	eventName() string
}

// AnswerDelivered reports that the answer service (or a human, via either
// transport) produced a reply for the session.
type AnswerDelivered struct {
	Source Source
}

// TakeoverRequested reports that an agent claimed the session.
type TakeoverRequested struct{}

// Released reports that the controlling agent handed the session back.
type Released struct{}

func (AnswerDelivered) eventName() string   { return "answer_delivered" }
func (TakeoverRequested) eventName() string { return "takeover" }
func (Released) eventName() string          { return "release" }

// StateMachine tracks the controller of one session. It is not goroutine
// safe; callers own synchronisation (the hub guards it with its mutex, the
// widget with its own).
type StateMachine struct {
	controller Controller
}

// NewStateMachine returns a machine in the initial bot-controlled state.
func NewStateMachine() *StateMachine {
	return &StateMachine{controller: ControllerBot}
}

// Controller returns the current controller.
func (m *StateMachine) Controller() Controller {
	return m.controller
}

// Apply dispatches an event. Transition edges are the only way the controller
// changes. Stale events that would move a session backwards (a system answer
// arriving after a human took over, a late bot answer while pending) are
// swallowed without state change; genuinely invalid commands return
// ErrInvalidTransition and leave the machine untouched.
func (m *StateMachine) Apply(ev Event) (Controller, error) {
	switch e := ev.(type) {
	case AnswerDelivered:
		m.applyAnswer(e.Source)
		return m.controller, nil
	case TakeoverRequested:
		// Agents may claim an escalated session or preempt an unowned one.
		if m.controller == ControllerHuman {
			return m.controller, fmt.Errorf("%w: takeover while already human-controlled", ErrInvalidTransition)
		}
		m.controller = ControllerHuman
		return m.controller, nil
	case Released:
		if m.controller != ControllerHuman {
			return m.controller, fmt.Errorf("%w: release while %s-controlled", ErrInvalidTransition, m.controller)
		}
		m.controller = ControllerBot
		return m.controller, nil
	default:
		return m.controller, fmt.Errorf("%w: unhandled event %s", ErrInvalidTransition, ev.eventName())
	}
}

func (m *StateMachine) applyAnswer(src Source) {
	switch src {
	case SourceSystem:
		// Escalation signal. Ignored once a human already owns the session:
		// status must never regress.
		if m.controller == ControllerBot {
			m.controller = ControllerPending
		}
	case SourceHuman:
		// One-shot resolution of a pending escalation: the human reply has
		// been delivered, automated routing resumes.
		if m.controller == ControllerPending {
			m.controller = ControllerBot
		}
	case SourceBot:
		// A bot answer neither escalates nor resolves anything.
	}
}
