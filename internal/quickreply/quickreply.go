// Package quickreply selects which shortcut prompts to surface after a reply.
package quickreply

import (
	"strings"
	"sync"

	"github.com/BobOttley/more-house-human/internal/topic"
)

// MaxSuggestions bounds every suggestion list handed to the UI.
const MaxSuggestions = 3

// QuickReply is a pre-canned prompt offered as a clickable shortcut.
// Identity is the Query string, compared case-insensitively.
type QuickReply struct {
	Label string `json:"label"`
	Query string `json:"query"`
}

// Bucket groups quick replies under one topic tag.
type Bucket struct {
	Tag     topic.Tag
	Entries []QuickReply
}

// DefaultBuckets returns the built-in prompt catalogue. Bucket and entry
// order matter: the ranker preserves them when building suggestion lists.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{topic.Admissions, []QuickReply{
			{Label: "Enquire now", Query: "enquiry"},
			{Label: "Fees", Query: "What are the school fees?"},
			{Label: "Deadlines", Query: "What are the registration deadlines?"},
		}},
		{topic.Lunch, []QuickReply{
			{Label: "Lunch menu", Query: "Where can I find the school lunch menu?"},
		}},
		{topic.Calendar, []QuickReply{
			{Label: "Term dates", Query: "What are the term dates?"},
			{Label: "Open events", Query: "What are the open events?"},
		}},
		{topic.Uniform, []QuickReply{
			{Label: "Uniform", Query: "What is the school uniform?"},
		}},
		{topic.Scholarships, []QuickReply{
			{Label: "Bursaries & scholarships", Query: "Tell me about scholarships and bursaries"},
		}},
		{topic.Contact, []QuickReply{
			{Label: "Contact us", Query: "How can I contact the school?"},
		}},
		{topic.Academics, []QuickReply{
			{Label: "Academic life", Query: "What is academic life like?"},
			{Label: "Subjects offered", Query: "Which subjects do you offer?"},
			{Label: "Sixth Form", Query: "Tell me about the sixth form"},
		}},
		{topic.Extracurricular, []QuickReply{
			{Label: "Co-curricular activities", Query: "What extracurricular activities do you offer?"},
			{Label: "Sport", Query: "What sports do you offer?"},
			{Label: "Faith Life", Query: "Tell me about faith life"},
		}},
		{topic.Policies, []QuickReply{
			{Label: "Policies", Query: "policies"},
			{Label: "Safeguarding", Query: "safeguarding"},
		}},
	}
}

// UsedSet tracks which queries a visitor has already issued within one
// session. It only grows; there is no way to un-use a query.
type UsedSet struct {
	mu      sync.Mutex
	queries map[string]struct{}
}

// NewUsedSet creates an empty used-query set.
func NewUsedSet() *UsedSet {
	return &UsedSet{queries: make(map[string]struct{})}
}

// Mark records a query as used. Both canonical quick-reply queries and the
// visitor's literal free text are accepted.
func (u *UsedSet) Mark(query string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.queries[normalize(query)] = struct{}{}
}

// Has reports whether the query was already issued in this session.
func (u *UsedSet) Has(query string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.queries[normalize(query)]
	return ok
}

// Len returns the number of distinct used queries.
func (u *UsedSet) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queries)
}

func normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Rank produces the ordered suggestion list for one reply. Partition priority
// is the whole product behavior and must not change:
//
//	fresh in-category, fresh out-of-category, seen in-category, seen out-of-category
//
// truncated to MaxSuggestions. Relative order inside each partition follows
// bucket order. Duplicate queries are dropped, keeping the first occurrence.
func Rank(buckets []Bucket, tag topic.Tag, used *UsedSet) []QuickReply {
	var inCat, outCat []QuickReply
	for _, b := range buckets {
		if b.Tag == tag {
			inCat = append(inCat, b.Entries...)
		} else {
			outCat = append(outCat, b.Entries...)
		}
	}

	var freshIn, seenIn, freshOut, seenOut []QuickReply
	for _, q := range inCat {
		if used != nil && used.Has(q.Query) {
			seenIn = append(seenIn, q)
		} else {
			freshIn = append(freshIn, q)
		}
	}
	for _, q := range outCat {
		if used != nil && used.Has(q.Query) {
			seenOut = append(seenOut, q)
		} else {
			freshOut = append(freshOut, q)
		}
	}

	merged := make([]QuickReply, 0, len(inCat)+len(outCat))
	merged = append(merged, freshIn...)
	merged = append(merged, freshOut...)
	merged = append(merged, seenIn...)
	merged = append(merged, seenOut...)

	seen := make(map[string]struct{}, MaxSuggestions)
	out := make([]QuickReply, 0, MaxSuggestions)
	for _, q := range merged {
		key := normalize(q.Query)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}
