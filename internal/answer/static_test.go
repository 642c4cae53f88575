package answer

import (
	"context"
	"testing"

	"github.com/BobOttley/more-house-human/internal/session"
)

type recordingFlagger struct {
	sessionIDs []string
	questions  []string
}

func (f *recordingFlagger) FlagQuestion(_ context.Context, sessionID, question string) error {
	f.sessionIDs = append(f.sessionIDs, sessionID)
	f.questions = append(f.questions, question)
	return nil
}

func TestStaticResponder_CannedAnswer(t *testing.T) {
	r := NewStaticResponder(nil)

	reply, err := r.Answer(context.Background(), "sess-1", "What are the school fees?")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if reply.Source != session.SourceBot {
		t.Errorf("Source = %q, want bot", reply.Source)
	}
	if reply.URL == "" || reply.LinkLabel == "" {
		t.Error("canned answer should carry url and link label")
	}
}

func TestStaticResponder_ContainmentMatch(t *testing.T) {
	r := NewStaticResponder(nil)
	reply, err := r.Answer(context.Background(), "sess-1", "Hi, what are the school fees please")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if reply.LinkLabel != "More about Fees" {
		t.Errorf("LinkLabel = %q, containment should hit the fees entry", reply.LinkLabel)
	}
}

func TestStaticResponder_SensitiveEscalates(t *testing.T) {
	flagger := &recordingFlagger{}
	r := NewStaticResponder(flagger)

	reply, err := r.Answer(context.Background(), "sess-9", "My daughter is experiencing bullying")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if reply.Source != session.SourceSystem {
		t.Errorf("Source = %q, sensitive question must escalate with system source", reply.Source)
	}
	if len(flagger.questions) != 1 || flagger.sessionIDs[0] != "sess-9" {
		t.Errorf("flagged %v for %v, want the question persisted once", flagger.questions, flagger.sessionIDs)
	}
}

func TestStaticResponder_FallbackIsBot(t *testing.T) {
	r := NewStaticResponder(nil)
	reply, err := r.Answer(context.Background(), "sess-1", "do you have a quidditch team")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if reply.Source != session.SourceBot || reply.Text == "" {
		t.Errorf("fallback reply = %+v, want non-empty bot answer", reply)
	}
}

func TestStaticResponder_Welcome(t *testing.T) {
	r := NewStaticResponder(nil)
	reply, err := r.Answer(context.Background(), "sess-1", WelcomeQuery)
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if reply.Source != session.SourceBot || reply.Text == "" {
		t.Errorf("welcome reply = %+v, want greeting from bot", reply)
	}
}
