package widget

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BobOttley/more-house-human/internal/answer"
	"github.com/BobOttley/more-house-human/internal/session"
)

type scriptAdapter struct {
	askFn    func(ctx context.Context, sessionID, question string) (answer.Reply, string, error)
	statusFn func(ctx context.Context, sessionID string) (string, session.Source, error)
}

func (a *scriptAdapter) Ask(ctx context.Context, sessionID, question string) (answer.Reply, string, error) {
	return a.askFn(ctx, sessionID, question)
}

func (a *scriptAdapter) Status(ctx context.Context, sessionID string) (string, session.Source, error) {
	if a.statusFn == nil {
		return "", session.SourceSystem, nil
	}
	return a.statusFn(ctx, sessionID)
}

func botReply(text string) answer.Reply {
	return answer.Reply{Text: text, Source: session.SourceBot}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func humanTurns(s *State) []Turn {
	var out []Turn
	for _, turn := range s.Turns() {
		if turn.Role == session.RoleHuman {
			out = append(out, turn)
		}
	}
	return out
}

func TestOpenSeedsSuggestions(t *testing.T) {
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, question string) (answer.Reply, string, error) {
			if question != welcomeQuery {
				t.Errorf("Open sent %q, want the welcome query", question)
			}
			return botReply("Welcome to More House!"), "sess-1", nil
		},
	}
	s := New(adapter, Options{})

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.SessionID() != "sess-1" {
		t.Errorf("session ID = %q, want sess-1", s.SessionID())
	}

	turns := s.Turns()
	if len(turns) != 1 || turns[0].Role != session.RoleBot {
		t.Fatalf("turns = %+v, want a single bot greeting", turns)
	}
	if len(turns[0].Suggestions) != 3 {
		t.Errorf("opening suggestions = %d, want 3", len(turns[0].Suggestions))
	}
}

func TestAskAppendsSuggestionsForBotReplies(t *testing.T) {
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, _ string) (answer.Reply, string, error) {
			return botReply("Fees are published on our website."), "sess-1", nil
		},
	}
	s := New(adapter, Options{})

	if err := s.Ask(context.Background(), "What are the school fees?"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want visitor + bot", len(turns))
	}
	sugg := turns[1].Suggestions
	if len(sugg) != 3 {
		t.Fatalf("suggestions = %+v, want 3", sugg)
	}
	// The asked question matches the Fees quick reply, so it is demoted and
	// the remaining fresh admissions prompts lead.
	if sugg[0].Label != "Enquire now" || sugg[1].Label != "Deadlines" {
		t.Errorf("suggestions = %+v, want fresh in-category prompts first", sugg)
	}
	for _, q := range sugg {
		if q.Label == "Fees" {
			t.Error("used Fees prompt offered ahead of fresh prompts")
		}
	}
}

func TestAskSupersededDiscardsOlderReply(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	adapter := &scriptAdapter{
		askFn: func(ctx context.Context, _, question string) (answer.Reply, string, error) {
			if question == "slow" {
				close(entered)
				select {
				case <-release:
				case <-ctx.Done():
				}
				return botReply("slow answer"), "sess-1", nil
			}
			return botReply("fast answer"), "sess-1", nil
		},
	}
	s := New(adapter, Options{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Ask(context.Background(), "slow")
	}()
	<-entered

	if err := s.Ask(context.Background(), "fast"); err != nil {
		t.Fatalf("second Ask failed: %v", err)
	}
	close(release)

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first Ask returned %v, want ErrSuperseded", err)
	}

	for _, turn := range s.Turns() {
		if turn.Text == "slow answer" {
			t.Error("superseded reply reached the transcript")
		}
	}
	last := s.Turns()[len(s.Turns())-1]
	if last.Text != "fast answer" {
		t.Errorf("last turn = %q, want the newer reply", last.Text)
	}
}

func TestAskFailureAppendsApology(t *testing.T) {
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, _ string) (answer.Reply, string, error) {
			return answer.Reply{}, "", errors.New("connection refused")
		},
	}
	s := New(adapter, Options{})

	if err := s.Ask(context.Background(), "hello"); err == nil {
		t.Fatal("Ask succeeded, want transport error")
	}

	turns := s.Turns()
	last := turns[len(turns)-1]
	if last.Role != session.RoleSystem || last.Text != apologyText {
		t.Errorf("last turn = %+v, want system apology", last)
	}
}

func TestEscalationPollsUntilHumanReply(t *testing.T) {
	var polls atomic.Int32
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, _ string) (answer.Reply, string, error) {
			return answer.Reply{Text: "We have alerted our team.", Source: session.SourceSystem}, "sess-1", nil
		},
		statusFn: func(_ context.Context, _ string) (string, session.Source, error) {
			if polls.Add(1) < 3 {
				return "", session.SourceSystem, nil
			}
			return "Sarah here, how can I help?", session.SourceHuman, nil
		},
	}
	s := New(adapter, Options{PollInterval: 2 * time.Millisecond, MaxPollAttempts: 50})

	if err := s.Ask(context.Background(), "I need to report bullying"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !s.Waiting() {
		t.Fatal("widget not waiting after system reply")
	}

	waitFor(t, func() bool { return !s.Waiting() }, "poll never resolved")

	turns := humanTurns(s)
	if len(turns) != 1 || turns[0].Text != "Sarah here, how can I help?" {
		t.Fatalf("human turns = %+v, want exactly the agent reply", turns)
	}

	// The loop stops once resolved.
	settled := polls.Load()
	time.Sleep(20 * time.Millisecond)
	if polls.Load() != settled {
		t.Error("status polling continued after the human reply")
	}
}

func TestPollExhaustionAppendsNotice(t *testing.T) {
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, _ string) (answer.Reply, string, error) {
			return answer.Reply{Text: "We have alerted our team.", Source: session.SourceSystem}, "sess-1", nil
		},
	}
	s := New(adapter, Options{PollInterval: 2 * time.Millisecond, MaxPollAttempts: 3})

	if err := s.Ask(context.Background(), "urgent"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	waitFor(t, func() bool { return !s.Waiting() }, "poll never exhausted")

	turns := s.Turns()
	last := turns[len(turns)-1]
	if last.Role != session.RoleSystem || last.Text != pollTimeoutText {
		t.Errorf("last turn = %+v, want the timeout notice", last)
	}
}

func TestPollExhaustionReleasesPollContext(t *testing.T) {
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, _ string) (answer.Reply, string, error) {
			return answer.Reply{Text: "We have alerted our team.", Source: session.SourceSystem}, "sess-1", nil
		},
	}
	s := New(adapter, Options{PollInterval: 20 * time.Millisecond, MaxPollAttempts: 2})

	if err := s.Ask(context.Background(), "urgent"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	// Wrap the stored cancel func so its invocation is observable.
	cancelled := make(chan struct{})
	s.mu.Lock()
	orig := s.stopPoll
	if orig == nil {
		s.mu.Unlock()
		t.Fatal("no poll cancel func stored after escalation")
	}
	s.stopPoll = func() {
		orig()
		close(cancelled)
	}
	s.mu.Unlock()

	waitFor(t, func() bool { return !s.Waiting() }, "poll never exhausted")

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Error("poll context cancel func never invoked after exhaustion")
	}
}

func TestPushAndPollResolveWaitOnce(t *testing.T) {
	statusEntered := make(chan struct{})
	statusRelease := make(chan struct{})
	var once atomic.Bool
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, _ string) (answer.Reply, string, error) {
			return answer.Reply{Text: "We have alerted our team.", Source: session.SourceSystem}, "sess-1", nil
		},
		statusFn: func(_ context.Context, _ string) (string, session.Source, error) {
			if once.CompareAndSwap(false, true) {
				close(statusEntered)
				<-statusRelease
				return "Sarah here, how can I help?", session.SourceHuman, nil
			}
			return "", session.SourceSystem, nil
		},
	}
	s := New(adapter, Options{PollInterval: 2 * time.Millisecond, MaxPollAttempts: 50})

	if err := s.Ask(context.Background(), "urgent"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	// The push lands while a poll for the same queued reply is in flight.
	<-statusEntered
	s.HandlePush("Sarah here, how can I help?", session.SourceHuman)
	close(statusRelease)

	waitFor(t, func() bool { return !s.Waiting() }, "wait never resolved")
	time.Sleep(10 * time.Millisecond)

	turns := humanTurns(s)
	if len(turns) != 1 {
		t.Fatalf("human turns = %+v, want the reply delivered exactly once", turns)
	}
}

func TestNewAskCancelsPendingWait(t *testing.T) {
	var polls atomic.Int32
	adapter := &scriptAdapter{
		askFn: func(_ context.Context, _, question string) (answer.Reply, string, error) {
			if question == "urgent" {
				return answer.Reply{Text: "We have alerted our team.", Source: session.SourceSystem}, "sess-1", nil
			}
			return botReply("fees answer"), "sess-1", nil
		},
		statusFn: func(_ context.Context, _ string) (string, session.Source, error) {
			polls.Add(1)
			return "", session.SourceSystem, nil
		},
	}
	s := New(adapter, Options{PollInterval: 2 * time.Millisecond, MaxPollAttempts: 1000})

	if err := s.Ask(context.Background(), "urgent"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if err := s.Ask(context.Background(), "What are the school fees?"); err != nil {
		t.Fatalf("second Ask failed: %v", err)
	}

	if s.Waiting() {
		t.Error("still waiting after a new question replaced the escalation")
	}
	// Let any poll iteration already past its tick drain out.
	time.Sleep(10 * time.Millisecond)
	settled := polls.Load()
	time.Sleep(20 * time.Millisecond)
	if polls.Load() != settled {
		t.Error("old poll loop survived the new question")
	}
}
