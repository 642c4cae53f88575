package widget

import (
	"context"

	"github.com/BobOttley/more-house-human/internal/answer"
	"github.com/BobOttley/more-house-human/internal/session"
)

// Adapter is the transport the widget core uses to reach the chat service.
// Ask returns the reply plus the session ID to carry forward, which differs
// from the input only on first contact. Status performs one poll for a queued
// human reply; an empty answer with source system means nothing yet.
type Adapter interface {
	Ask(ctx context.Context, sessionID, question string) (answer.Reply, string, error)
	Status(ctx context.Context, sessionID string) (string, session.Source, error)
}
