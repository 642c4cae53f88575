package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BobOttley/more-house-human/internal/session"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const wsWriteTimeout = 10 * time.Second

// visitorFrame is the widget-side wire format. Field names are snake_case;
// the agent console wire uses camelCase (see Frame).
type visitorFrame struct {
	Type      string `json:"type,omitempty"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Source    string `json:"source,omitempty"`
	URL       string `json:"url,omitempty"`
	LinkLabel string `json:"link_label,omitempty"`
}

// WebSocketHandler upgrades and serves the push transport for both widget
// and agent console connections.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
	askTimeout    time.Duration
}

// NewWebSocketHandler creates a handler bound to the hub.
func NewWebSocketHandler(h *Hub, allowedOrigin string, isDev bool, askTimeout time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           h,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		askTimeout:    askTimeout,
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return nil, false
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "ip", r.RemoteAddr)
		return nil, false
	}
	return ws, true
}

// agentSink adapts a websocket connection to the hub's Sink interface.
type agentSink struct {
	conn *websocket.Conn
}

func (s *agentSink) Send(frame Frame) error {
	return writeJSON(s.conn, frame)
}

// ServeAgent handles an agent console connection. The console announces
// itself with a join frame, then issues agent_message, takeover and release
// commands; the hub pushes session events back over the same connection.
func (h *WebSocketHandler) ServeAgent(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.accept(w, r)
	if !ok {
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "console closed"); closeErr != nil {
			slog.Debug("failed to close agent websocket", "error", closeErr)
		}
	}()

	sink := &agentSink{conn: ws}
	joined := false
	defer func() {
		if joined {
			h.hub.UnregisterAgent(sink)
		}
	}()

	for {
		_, data, err := ws.Read(r.Context())
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("agent console disconnected")
			} else {
				slog.Warn("agent websocket read error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("malformed agent frame", "error", err)
			continue
		}

		switch frame.Type {
		case FrameJoin:
			if !joined {
				joined = true
				h.hub.RegisterAgent(sink)
			}
		case FrameAgentMessage:
			if frame.SessionID != "" && frame.Message != "" {
				h.hub.AgentMessage(frame.SessionID, frame.Message)
			}
		case FrameTakeover:
			if err := h.hub.Takeover(frame.SessionID); err != nil {
				slog.Warn("takeover rejected", "session_id", frame.SessionID, "error", err)
			}
		case FrameRelease:
			if err := h.hub.Release(frame.SessionID); err != nil {
				slog.Warn("release rejected", "session_id", frame.SessionID, "error", err)
			}
		default:
			slog.Debug("ignoring unknown agent frame", "type", frame.Type)
		}
	}
}

// visitorConn adapts a widget websocket to the hub's VisitorSink interface.
type visitorConn struct {
	conn *websocket.Conn
}

func (v *visitorConn) Deliver(text string, src session.Source) error {
	return writeJSON(v.conn, visitorFrame{
		Type:    "response",
		Message: text,
		Source:  string(src),
	})
}

// ServeChat handles a widget connection on the push transport. Each inbound
// message frame runs through the same handoff pipeline as POST /ask; replies
// come back as response frames carrying the source tag.
func (h *WebSocketHandler) ServeChat(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.accept(w, r)
	if !ok {
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close chat websocket", "error", closeErr)
		}
	}()

	sink := &visitorConn{conn: ws}
	sessionID := ""
	defer func() {
		if sessionID != "" {
			h.hub.UnregisterVisitor(sessionID, sink)
		}
	}()

	for {
		_, data, err := ws.Read(r.Context())
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("widget disconnected", "session_id", sessionID)
			} else {
				slog.Warn("chat websocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var frame visitorFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Message == "" {
			if err := writeJSON(ws, visitorFrame{Type: "response", Message: "Invalid input", Source: string(session.SourceSystem)}); err != nil {
				slog.Debug("failed to send invalid-input response", "error", err)
			}
			continue
		}

		// Adopt the client-generated session ID on first contact, or assign
		// one so later frames and agent replies correlate.
		if sessionID == "" {
			sessionID = frame.SessionID
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			h.hub.RegisterVisitor(sessionID, sink)
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.askTimeout)
		reply, sid, err := h.hub.Process(ctx, sessionID, frame.Message)
		cancel()
		if err != nil {
			slog.Error("failed to process widget message", "session_id", sessionID, "error", err)
			if werr := writeJSON(ws, visitorFrame{Type: "response", Message: "Sorry, I couldn't process your request.", Source: string(session.SourceSystem)}); werr != nil {
				slog.Debug("failed to send error response", "error", werr)
			}
			continue
		}
		sessionID = sid

		if err := writeJSON(ws, visitorFrame{
			Type:      "response",
			Message:   reply.Text,
			SessionID: sessionID,
			Source:    string(reply.Source),
			URL:       reply.URL,
			LinkLabel: reply.LinkLabel,
		}); err != nil {
			slog.Warn("failed to write chat response", "error", err, "session_id", sessionID)
			return
		}
	}
}

func writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
