package ledger

import "testing"

func TestUpsert_Idempotent(t *testing.T) {
	l := New()

	if created := l.Upsert("sess-1", "hello"); !created {
		t.Error("first upsert should create the view")
	}
	if created := l.Upsert("sess-1", "newer message"); created {
		t.Error("second upsert must not create a duplicate view")
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want exactly one view", l.Len())
	}

	v, ok := l.Get("sess-1")
	if !ok {
		t.Fatal("view disappeared")
	}
	if v.Preview != "newer message" {
		t.Errorf("Preview = %q, upsert should refresh it", v.Preview)
	}
}

func TestSetStatus_UnknownSessionNoOp(t *testing.T) {
	l := New()
	// Must not panic and must not create a view: status events can race
	// session creation.
	l.SetStatus("ghost", StatusRed)
	if l.Len() != 0 {
		t.Error("SetStatus created a view for an unknown session")
	}
}

func TestSetStatus_Monotonic(t *testing.T) {
	l := New()
	l.Upsert("sess-1", "q")

	l.SetStatus("sess-1", StatusRed)
	l.SetStatus("sess-1", StatusAmber) // stale, arrives late
	if v, _ := l.Get("sess-1"); v.Status != StatusRed {
		t.Errorf("Status = %q, stale amber must not regress red", v.Status)
	}

	l.MarkHumanControlled("sess-1")
	l.SetStatus("sess-1", StatusGrey)
	l.SetStatus("sess-1", StatusRed)
	if v, _ := l.Get("sess-1"); !v.HumanControlled {
		t.Error("status events must not touch a human-controlled view")
	}
}

func TestReleaseReopensStatus(t *testing.T) {
	l := New()
	l.Upsert("sess-1", "q")
	l.SetStatus("sess-1", StatusRed)
	l.MarkHumanControlled("sess-1")
	l.MarkReleased("sess-1")

	v, _ := l.Get("sess-1")
	if v.Status != StatusAmber {
		t.Errorf("Status after release = %q, want amber", v.Status)
	}
	// After release the session can escalate again.
	l.SetStatus("sess-1", StatusRed)
	if v, _ := l.Get("sess-1"); v.Status != StatusRed {
		t.Errorf("Status = %q, want red after re-escalation", v.Status)
	}
}

func TestSelect_ButtonEnablement(t *testing.T) {
	l := New()
	l.Upsert("sess-1", "q")
	l.SetStatus("sess-1", StatusRed)

	v, ok := l.Select("sess-1")
	if !ok {
		t.Fatal("Select failed for known session")
	}
	if !v.TakeoverEnabled || v.ReleaseEnabled {
		t.Error("escalated session: takeover should be enabled, release disabled")
	}

	l.MarkHumanControlled("sess-1")
	v, _ = l.Select("sess-1")
	if v.TakeoverEnabled || !v.ReleaseEnabled {
		t.Error("human-controlled session: release should be enabled, takeover disabled")
	}

	if l.Current() != "sess-1" {
		t.Errorf("Current = %q, want sess-1", l.Current())
	}
}

func TestRecordInbound_BumpsUnseen(t *testing.T) {
	l := New()
	l.Upsert("sess-1", "q")
	l.RecordInbound("sess-1")
	l.RecordInbound("sess-1")
	l.RecordOutbound("sess-1")

	v, _ := l.Get("sess-1")
	if v.Status != StatusAmber {
		t.Errorf("Status = %q, first inbound should bump grey to amber", v.Status)
	}
	if v.Inbound != 2 || v.Outbound != 1 {
		t.Errorf("counters = %d/%d, want 2/1", v.Inbound, v.Outbound)
	}
}

func TestIndependentSessions(t *testing.T) {
	l := New()
	l.Upsert("a", "one")
	l.Upsert("b", "two")
	l.SetStatus("a", StatusRed)

	if v, _ := l.Get("b"); v.Status != StatusGrey {
		t.Errorf("session b status = %q, sessions must be independent", v.Status)
	}
}
