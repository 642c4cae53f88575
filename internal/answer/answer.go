// Package answer abstracts the service that produces replies to visitor
// questions. The handoff protocol only cares about the source tag on each
// reply; the concrete responder behind it is opaque.
package answer

import (
	"context"

	"github.com/BobOttley/more-house-human/internal/session"
)

// Reply is one answer from the service.
type Reply struct {
	Text      string
	Source    session.Source
	URL       string
	LinkLabel string
}

// Service produces a reply for a visitor question. Implementations must tag
// every reply with its source: bot for automated answers, system for
// escalation signals.
type Service interface {
	Answer(ctx context.Context, sessionID, question string) (Reply, error)
}
