package topic

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Tag
	}{
		{"What are the school fees?", Admissions},
		{"How do I register my daughter?", Admissions},
		{"Where can I find the school lunch menu?", Lunch},
		{"What are the term dates?", Calendar},
		{"What is the school uniform?", Uniform},
		{"Tell me about scholarships and bursaries", Scholarships},
		{"How can I contact the school?", Contact},
		{"Which subjects do you offer?", Academics},
		{"What sports do you offer?", Extracurricular},
		{"Where are your safeguarding policies?", Policies},
		{"hello there", Admissions},
		{"", Admissions},
		{"UNIFORM", Uniform},
	}

	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// Predicate order is a contract: text matching several predicates resolves to
// the first one listed.
func TestClassify_OrderWins(t *testing.T) {
	if got := Classify("Is there a fee for lunch?"); got != Admissions {
		t.Errorf("Classify fee+lunch = %q, want %q", got, Admissions)
	}
	if got := Classify("lunch during term time"); got != Lunch {
		t.Errorf("Classify lunch+term = %q, want %q", got, Lunch)
	}
}

func TestClassify_Total(t *testing.T) {
	known := make(map[Tag]bool)
	for _, tag := range All() {
		known[tag] = true
	}
	inputs := []string{"fees", "random gibberish", "policy on sport", "email", "\n\t"}
	for _, in := range inputs {
		if !known[Classify(in)] {
			t.Errorf("Classify(%q) returned tag outside the fixed set", in)
		}
	}
}
