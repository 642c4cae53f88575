// Package hub coordinates chat sessions between visitor widgets, the
// automated answer service, and connected agent consoles. It owns the
// authoritative handoff state machine for every session and fans events out
// to agents over the push transport.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BobOttley/more-house-human/internal/answer"
	"github.com/BobOttley/more-house-human/internal/ledger"
	"github.com/BobOttley/more-house-human/internal/session"
	"github.com/BobOttley/more-house-human/internal/store"
	"github.com/google/uuid"
)

// Frame is one event on the agent console wire.
type Frame struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId,omitempty"`
	Message     string `json:"message,omitempty"`
	Status      string `json:"status,omitempty"`
	LastMessage string `json:"lastMessage,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Frame types pushed to agent consoles.
const (
	FrameNewSession      = "new_session"
	FrameStatusUpdate    = "status_update"
	FrameIncomingMessage = "incoming_message"
	FrameBotResponse     = "bot_response"
	FrameSystemMessage   = "system_message"
)

// Frame types received from agent consoles.
const (
	FrameJoin         = "join"
	FrameAgentMessage = "agent_message"
	FrameTakeover     = "takeover"
	FrameRelease      = "release"
)

// Sink delivers frames to one connected agent console.
type Sink interface {
	Send(frame Frame) error
}

// VisitorSink delivers a human reply to a push-connected widget.
type VisitorSink interface {
	Deliver(text string, src session.Source) error
}

type sessionState struct {
	machine      *session.StateMachine
	transcript   *session.Transcript
	pendingHuman []string
}

// Hub is the server-side session coordinator. Safe for concurrent use.
type Hub struct {
	svc  answer.Service
	repo store.Repository

	mu       sync.Mutex
	sessions map[string]*sessionState
	agents   map[Sink]struct{}
	visitors map[string]VisitorSink

	// ledger is the server's projection of what every console should
	// display; new consoles could be replayed from it.
	ledger *ledger.Ledger
}

// New creates a hub. repo may be nil when escalation persistence is disabled.
func New(svc answer.Service, repo store.Repository) *Hub {
	return &Hub{
		svc:      svc,
		repo:     repo,
		sessions: make(map[string]*sessionState),
		agents:   make(map[Sink]struct{}),
		visitors: make(map[string]VisitorSink),
		ledger:   ledger.New(),
	}
}

// Ledger exposes the hub's console projection, mainly for handlers and tests.
func (h *Hub) Ledger() *ledger.Ledger {
	return h.ledger
}

// RegisterAgent attaches an agent console to the broadcast set.
func (h *Hub) RegisterAgent(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.agents[s] = struct{}{}
	slog.Info("agent console joined", "agents", len(h.agents))
}

// UnregisterAgent detaches an agent console.
func (h *Hub) UnregisterAgent(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.agents, s)
	slog.Info("agent console left", "agents", len(h.agents))
}

// RegisterVisitor attaches a push-connected widget for a session. A second
// connection for the same session replaces the first.
func (h *Hub) RegisterVisitor(sessionID string, v VisitorSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visitors[sessionID] = v
}

// UnregisterVisitor detaches a widget connection if it is still the active one.
func (h *Hub) UnregisterVisitor(sessionID string, v VisitorSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.visitors[sessionID]; ok && current == v {
		delete(h.visitors, sessionID)
	}
}

// Process runs one visitor question through the handoff protocol and returns
// the reply to deliver plus the (possibly newly assigned) session ID. While a
// session is human-controlled the question is delivered to the agent console
// only, never to the answer service; the widget gets a system reply telling
// it to await the human response.
func (h *Hub) Process(ctx context.Context, sessionID, question string) (answer.Reply, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// The welcome sentinel is a greeting fetch, not a visitor message: no
	// transcript turn, no ledger entry, nothing pushed to consoles.
	if question == answer.WelcomeQuery {
		reply, err := h.svc.Answer(ctx, sessionID, question)
		if err != nil {
			return answer.Reply{}, sessionID, err
		}
		return reply, sessionID, nil
	}

	humanControlled := h.visitorMessage(sessionID, question)
	if humanControlled {
		return answer.Reply{
			Text:   "A member of our team has your message and will reply here.",
			Source: session.SourceSystem,
		}, sessionID, nil
	}

	reply, err := h.svc.Answer(ctx, sessionID, question)
	if err != nil {
		return answer.Reply{}, sessionID, err
	}

	if reply.Source == session.SourceSystem {
		h.systemReplied(sessionID, reply.Text)
	} else {
		h.botReplied(sessionID, reply.Text)
	}
	return reply, sessionID, nil
}

// visitorMessage records an inbound visitor turn, creating the session on
// first contact, and reports whether a human currently controls it.
func (h *Hub) visitorMessage(sessionID, text string) bool {
	h.mu.Lock()
	st := h.ensureSessionLocked(sessionID)
	st.transcript.Append(session.RoleVisitor, text)
	created := h.ledger.Upsert(sessionID, text)
	h.ledger.RecordInbound(sessionID)
	human := st.machine.Controller() == session.ControllerHuman
	view, _ := h.ledger.Get(sessionID)
	h.mu.Unlock()

	if created {
		h.broadcast(Frame{Type: FrameNewSession, SessionID: sessionID, LastMessage: text})
	}
	h.broadcast(Frame{Type: FrameIncomingMessage, SessionID: sessionID, Message: text})
	h.broadcast(Frame{Type: FrameStatusUpdate, SessionID: sessionID, Status: string(view.Status)})
	return human
}

func (h *Hub) botReplied(sessionID, text string) {
	h.mu.Lock()
	st := h.ensureSessionLocked(sessionID)
	st.transcript.Append(session.RoleBot, text)
	if _, err := st.machine.Apply(session.AnswerDelivered{Source: session.SourceBot}); err != nil {
		slog.Warn("bot answer rejected by state machine", "session_id", sessionID, "error", err)
	}
	h.mu.Unlock()

	h.broadcast(Frame{Type: FrameBotResponse, SessionID: sessionID, Message: text})
}

func (h *Hub) systemReplied(sessionID, text string) {
	h.mu.Lock()
	st := h.ensureSessionLocked(sessionID)
	st.transcript.Append(session.RoleSystem, text)
	if _, err := st.machine.Apply(session.AnswerDelivered{Source: session.SourceSystem}); err != nil {
		slog.Warn("system answer rejected by state machine", "session_id", sessionID, "error", err)
	}
	h.ledger.SetStatus(sessionID, ledger.StatusRed)
	h.mu.Unlock()

	h.broadcast(Frame{Type: FrameSystemMessage, SessionID: sessionID, Message: text})
	h.broadcast(Frame{Type: FrameStatusUpdate, SessionID: sessionID, Status: string(ledger.StatusRed)})
}

// Takeover hands the session to a human agent.
func (h *Hub) Takeover(sessionID string) error {
	h.mu.Lock()
	st := h.ensureSessionLocked(sessionID)
	_, err := st.machine.Apply(session.TakeoverRequested{})
	if err == nil {
		h.ledger.MarkHumanControlled(sessionID)
	}
	h.mu.Unlock()

	if err != nil {
		return err
	}
	slog.Info("agent took over session", "session_id", sessionID)
	h.broadcast(Frame{Type: FrameStatusUpdate, SessionID: sessionID, Status: string(ledger.StatusRed)})
	return nil
}

// Release returns the session to automated routing and closes out any
// persisted escalations for it.
func (h *Hub) Release(sessionID string) error {
	h.mu.Lock()
	st := h.ensureSessionLocked(sessionID)
	_, err := st.machine.Apply(session.Released{})
	if err == nil {
		h.ledger.MarkReleased(sessionID)
	}
	h.mu.Unlock()

	if err != nil {
		return err
	}
	if h.repo != nil {
		if _, repoErr := h.repo.Resolve(context.Background(), sessionID); repoErr != nil {
			slog.Warn("failed to resolve escalations on release", "session_id", sessionID, "error", repoErr)
		}
	}
	slog.Info("agent released session", "session_id", sessionID)
	h.broadcast(Frame{Type: FrameStatusUpdate, SessionID: sessionID, Status: string(ledger.StatusAmber)})
	return nil
}

// AgentMessage delivers an agent reply to the visitor. Push-connected widgets
// receive it immediately; otherwise it queues for the next status poll. A
// reply to an escalated-but-not-taken-over session resolves the escalation
// one-shot.
func (h *Hub) AgentMessage(sessionID, text string) {
	h.mu.Lock()
	st := h.ensureSessionLocked(sessionID)
	st.transcript.Append(session.RoleHuman, text)
	h.ledger.RecordOutbound(sessionID)
	if _, err := st.machine.Apply(session.AnswerDelivered{Source: session.SourceHuman}); err != nil {
		slog.Warn("human answer rejected by state machine", "session_id", sessionID, "error", err)
	}
	v := h.visitors[sessionID]
	if v == nil {
		st.pendingHuman = append(st.pendingHuman, text)
	}
	h.mu.Unlock()

	if v != nil {
		if err := v.Deliver(text, session.SourceHuman); err != nil {
			slog.Warn("failed to push human reply, queueing for poll", "session_id", sessionID, "error", err)
			h.mu.Lock()
			h.sessions[sessionID].pendingHuman = append(h.sessions[sessionID].pendingHuman, text)
			h.mu.Unlock()
		}
	}
}

// PollStatus answers one /status poll: the oldest queued human reply if any,
// else a system placeholder telling the widget to keep polling. Unknown
// sessions get the placeholder too; status polls may race session creation.
func (h *Hub) PollStatus(sessionID string) (string, session.Source) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.sessions[sessionID]
	if !ok || len(st.pendingHuman) == 0 {
		return "", session.SourceSystem
	}
	text := st.pendingHuman[0]
	st.pendingHuman = st.pendingHuman[1:]
	return text, session.SourceHuman
}

// Controller returns the current controller for a session, defaulting to bot
// for unknown sessions.
func (h *Hub) Controller(sessionID string) session.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.sessions[sessionID]; ok {
		return st.machine.Controller()
	}
	return session.ControllerBot
}

// Transcript returns a copy of the session's transcript.
func (h *Hub) Transcript(sessionID string) []session.Turn {
	h.mu.Lock()
	st, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return st.transcript.Replay()
}

func (h *Hub) ensureSessionLocked(sessionID string) *sessionState {
	st, ok := h.sessions[sessionID]
	if !ok {
		st = &sessionState{
			machine:    session.NewStateMachine(),
			transcript: session.NewTranscript(),
		}
		h.sessions[sessionID] = st
	}
	return st
}

// broadcast fans a frame out to every connected console. Sinks are snapshotted
// under the lock; the writes happen outside it so a slow console cannot stall
// the protocol.
func (h *Hub) broadcast(frame Frame) {
	h.mu.Lock()
	sinks := make([]Sink, 0, len(h.agents))
	for s := range h.agents {
		sinks = append(sinks, s)
	}
	h.mu.Unlock()

	for _, s := range sinks {
		if err := s.Send(frame); err != nil {
			slog.Debug("dropping agent console after send failure", "error", err)
			h.UnregisterAgent(s)
		}
	}
}
