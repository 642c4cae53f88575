package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BobOttley/more-house-human/internal/answer"
	"github.com/BobOttley/more-house-human/internal/session"
	"github.com/coder/websocket"
)

// pushFrame mirrors the widget websocket wire format.
type pushFrame struct {
	Type      string `json:"type,omitempty"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Source    string `json:"source,omitempty"`
	URL       string `json:"url,omitempty"`
	LinkLabel string `json:"link_label,omitempty"`
}

// PushAdapter reaches the chat service over the websocket transport. Replies
// to Ask come back on the socket; human messages pushed outside the ask cycle
// are forwarded to the onHuman callback, which a State supplies as HandlePush.
type PushAdapter struct {
	conn    *websocket.Conn
	onHuman func(text string, src session.Source)

	askMu sync.Mutex // one ask on the socket at a time

	mu      sync.Mutex
	pending chan pushFrame
	// discard counts response frames still owed to cancelled asks. The server
	// answers every question frame in order, so a superseded ask's response is
	// still on the wire; it must not satisfy the next ask's pending channel.
	discard int
	closed  bool
}

// DialPush connects to the websocket endpoint and starts the read loop.
func DialPush(ctx context.Context, url string, onHuman func(text string, src session.Source)) (*PushAdapter, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	a := &PushAdapter{conn: conn, onHuman: onHuman}
	go a.readLoop()
	return a, nil
}

func (a *PushAdapter) readLoop() {
	for {
		_, data, err := a.conn.Read(context.Background())
		if err != nil {
			a.mu.Lock()
			a.closed = true
			if a.pending != nil {
				close(a.pending)
				a.pending = nil
			}
			a.mu.Unlock()
			if websocket.CloseStatus(err) == -1 {
				slog.Warn("push transport read error", "error", err)
			}
			return
		}

		var frame pushFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("malformed push frame", "error", err)
			continue
		}

		// Human replies arrive unsolicited; everything else answers the
		// in-flight ask.
		if frame.Source == string(session.SourceHuman) {
			if a.onHuman != nil {
				a.onHuman(frame.Message, session.SourceHuman)
			}
			continue
		}

		a.mu.Lock()
		if a.discard > 0 {
			a.discard--
			a.mu.Unlock()
			continue
		}
		ch := a.pending
		a.pending = nil
		a.mu.Unlock()
		if ch != nil {
			ch <- frame
			close(ch)
		}
	}
}

// Ask sends one question frame and waits for its response frame.
func (a *PushAdapter) Ask(ctx context.Context, sessionID, question string) (answer.Reply, string, error) {
	a.askMu.Lock()
	defer a.askMu.Unlock()

	ch := make(chan pushFrame, 1)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return answer.Reply{}, sessionID, errors.New("push transport closed")
	}
	a.pending = ch
	a.mu.Unlock()

	out, err := json.Marshal(pushFrame{Type: "message", Message: question, SessionID: sessionID})
	if err != nil {
		return answer.Reply{}, sessionID, err
	}
	if err := a.conn.Write(ctx, websocket.MessageText, out); err != nil {
		a.mu.Lock()
		a.pending = nil
		a.mu.Unlock()
		return answer.Reply{}, sessionID, fmt.Errorf("failed to send question: %w", err)
	}

	select {
	case <-ctx.Done():
		a.mu.Lock()
		if a.pending != nil {
			// The question frame went out, so its response frame is still
			// coming; the read loop drops it instead of handing it to the
			// next ask.
			a.pending = nil
			a.discard++
		}
		a.mu.Unlock()
		return answer.Reply{}, sessionID, ctx.Err()
	case frame, ok := <-ch:
		if !ok {
			return answer.Reply{}, sessionID, errors.New("push transport closed")
		}
		sid := frame.SessionID
		if sid == "" {
			sid = sessionID
		}
		return answer.Reply{
			Text:      frame.Message,
			Source:    session.Source(frame.Source),
			URL:       frame.URL,
			LinkLabel: frame.LinkLabel,
		}, sid, nil
	}
}

// Status is a no-op on the push transport; human replies arrive via the read
// loop instead of polling.
func (a *PushAdapter) Status(_ context.Context, _ string) (string, session.Source, error) {
	return "", session.SourceSystem, nil
}

// Close shuts the websocket down.
func (a *PushAdapter) Close() error {
	return a.conn.Close(websocket.StatusNormalClosure, "widget closed")
}
