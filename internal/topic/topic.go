// Package topic categorises free-text visitor questions into a fixed tag set.
package topic

import "regexp"

// Tag is one of the fixed topic categories used to bucket quick replies.
type Tag string

const (
	Admissions      Tag = "admissions"
	Lunch           Tag = "lunch"
	Calendar        Tag = "calendar"
	Uniform         Tag = "uniform"
	Scholarships    Tag = "scholarships"
	Contact         Tag = "contact"
	Academics       Tag = "academics"
	Extracurricular Tag = "extracurricular"
	Policies        Tag = "policies"
)

// predicate pairs a tag with its keyword pattern.
type predicate struct {
	tag     Tag
	pattern *regexp.Regexp
}

// predicates are evaluated in order and the first match wins. The order is
// part of the classifier contract: a question mentioning both "fee" and
// "lunch" classifies as admissions because that predicate is listed first.
// Do not reorder without updating the quick-reply expectations.
var predicates = []predicate{
	{Admissions, regexp.MustCompile(`(?i)register|registration|admission|fee|prospectus`)},
	{Lunch, regexp.MustCompile(`(?i)lunch|dietary|menu|meal`)},
	{Calendar, regexp.MustCompile(`(?i)term|holiday|calendar|event`)},
	{Uniform, regexp.MustCompile(`(?i)uniform|dress code`)},
	{Scholarships, regexp.MustCompile(`(?i)bursary|scholarship`)},
	{Contact, regexp.MustCompile(`(?i)contact|email|phone|telephone`)},
	{Academics, regexp.MustCompile(`(?i)academic|subject|learning`)},
	{Extracurricular, regexp.MustCompile(`(?i)sport|co-curricular|activity`)},
	{Policies, regexp.MustCompile(`(?i)policy|policies|safeguarding`)},
}

// Classify maps arbitrary text to a topic tag. It is total: text matching no
// predicate falls back to Admissions.
func Classify(text string) Tag {
	for _, p := range predicates {
		if p.pattern.MatchString(text) {
			return p.tag
		}
	}
	return Admissions
}

// All returns every tag in predicate-evaluation order, Admissions first.
func All() []Tag {
	tags := make([]Tag, 0, len(predicates))
	for _, p := range predicates {
		tags = append(tags, p.tag)
	}
	return tags
}
