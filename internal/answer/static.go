package answer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BobOttley/more-house-human/internal/session"
)

// WelcomeQuery is the sentinel question the widget sends when it first opens.
const WelcomeQuery = "__welcome__"

const welcomeText = "Hello! How can I assist you with More House School today?"

const fallbackText = "Sorry, I couldn't find a relevant answer. " +
	"Your question has been passed to our admissions team."

// qa is one canned answer keyed by its canonical prompt.
type qa struct {
	answer    string
	url       string
	linkLabel string
}

// sensitiveKeywords force a question out of the automated path and into
// human review.
var sensitiveKeywords = []string{"bullying", "abuse", "harassment"}

// staticQAs maps normalized prompts to canned answers. Keys are matched
// first by exact lookup, then by containment in the visitor's question.
var staticQAs = map[string]qa{
	"enquiry": {
		answer:    "Please complete our enquiry form and we will tailor a prospectus exactly for you and your child.",
		url:       "https://www.morehouse.org.uk/admissions/enquiry/",
		linkLabel: "More about Enquiries",
	},
	"what are the school fees": {
		answer:    "Our current tuition fees for 2024–25 are £10,530 per term, inclusive of VAT.",
		url:       "https://www.morehouse.org.uk/admissions/fees/",
		linkLabel: "More about Fees",
	},
	"what are the registration deadlines": {
		answer:    "11+ Entrance: noon, 7 November 2025; Sixth Form: 14 November 2025; Pre-Senior: year-round applications.",
		url:       "https://www.morehouse.org.uk/admissions/joining-more-house/",
		linkLabel: "More about Registration",
	},
	"where can i find the school lunch menu": {
		answer:    "You can download our current school lunch menus (including dietary options) here:",
		url:       "https://www.morehouse.org.uk/information/school-lunches/",
		linkLabel: "View School Menus",
	},
	"what are the term dates": {
		answer:    "Our published term dates, half-terms and holiday dates can be found here:",
		url:       "https://www.morehouse.org.uk/news-and-calendar/term-dates/",
		linkLabel: "View Term Dates",
	},
	"what are the open events": {
		answer:    "Autumn Term 2025: Open Evening on 17 September, Open Mornings on 10 October & 5 November; Spring Term 2026: Open Morning on 23 January & Open Evening on 5 March.",
		url:       "https://www.morehouse.org.uk/admissions/our-open-events/",
		linkLabel: "View Open Events",
	},
	"what is the school uniform": {
		answer:    "The uniform comprises a navy More House blazer, navy v-neck jumper, gingham blouse, navy skirt or trousers and sensible black leather shoes.",
		url:       "https://www.morehouse.org.uk/information/school-uniform/",
		linkLabel: "More about Uniform",
	},
	"tell me about scholarships and bursaries": {
		answer:    "We offer a range of bursaries and scholarships to support families in need. For eligibility criteria and application details, please visit our Scholarships & Bursaries page.",
		url:       "https://www.morehouse.org.uk/admissions/scholarships-and-bursaries/",
		linkLabel: "More about Scholarships",
	},
	"how can i contact the school": {
		answer:    "You can contact our Admissions team by email at registrar@morehousemail.org.uk or by phone on 020 1234 5678.",
		url:       "https://www.morehouse.org.uk/contact/",
		linkLabel: "Contact Us",
	},
	"what is academic life like": {
		answer:    "Academic Life at More House blends rigorous coursework with personalised support. Explore our approach on the Academic Life page.",
		url:       "https://www.morehouse.org.uk/learning/academic-life/",
		linkLabel: "More about Academic Life",
	},
	"which subjects do you offer": {
		answer:    "We offer a wide range of subjects from STEM to humanities and creative arts. See the full list on our Subjects page.",
		url:       "https://www.morehouse.org.uk/learning/subjects/",
		linkLabel: "View Subjects Offered",
	},
	"tell me about the sixth form": {
		answer:    "For full details of our Sixth Form, including courses, results and admissions, please visit our Sixth Form page.",
		url:       "https://www.morehouse.org.uk/learning/sixth-form/",
		linkLabel: "More about Sixth Form",
	},
	"what extracurricular activities do you offer": {
		answer:    "We run sport, music, drama, Duke of Edinburgh and more. Discover all options on our Co-curricular Programme page.",
		url:       "https://www.morehouse.org.uk/beyond-the-classroom/co-curricular-programme/",
		linkLabel: "View Co-curricular Activities",
	},
	"what sports do you offer": {
		answer:    "We offer netball, hockey, football, rowing, athletics and more. Details are on our Sport page.",
		url:       "https://www.morehouse.org.uk/beyond-the-classroom/sport/",
		linkLabel: "View Sports Offered",
	},
	"tell me about faith life": {
		answer:    "Faith Life includes regular reflection sessions and chaplaincy support. Visit our Faith Life page to learn more.",
		url:       "https://www.morehouse.org.uk/beyond-the-classroom/faith-life/",
		linkLabel: "More about Faith Life",
	},
	"policies": {
		answer:    "You can find all of More House School's official policies, including safeguarding, health & safety, SEND and exams, on our Policies page.",
		url:       "https://www.morehouse.org.uk/information/school-policies/",
		linkLabel: "View School Policies",
	},
	"safeguarding": {
		answer:    "Our safeguarding policies ensure every pupil's safety both on and off campus. For full policy documents, visit our Safeguarding page.",
		url:       "https://www.morehouse.org.uk/information/safeguarding/",
		linkLabel: "View Safeguarding Policies",
	},
}

// Flagger records questions pulled out for human review. The store package
// provides the persistent implementation.
type Flagger interface {
	FlagQuestion(ctx context.Context, sessionID, question string) error
}

// StaticResponder answers from the canned QA corpus and escalates sensitive
// questions. It is deterministic: same question, same reply.
type StaticResponder struct {
	flagger Flagger
}

// NewStaticResponder creates a responder. flagger may be nil, in which case
// sensitive questions still escalate but are not persisted.
func NewStaticResponder(flagger Flagger) *StaticResponder {
	return &StaticResponder{flagger: flagger}
}

// Answer implements Service.
func (r *StaticResponder) Answer(ctx context.Context, sessionID, question string) (Reply, error) {
	q := normalize(question)

	if q == WelcomeQuery {
		return Reply{Text: welcomeText, Source: session.SourceBot}, nil
	}

	for _, kw := range sensitiveKeywords {
		if strings.Contains(q, kw) {
			if r.flagger != nil {
				if err := r.flagger.FlagQuestion(ctx, sessionID, question); err != nil {
					slog.Warn("failed to persist flagged question", "session_id", sessionID, "error", err)
				}
			}
			return Reply{
				Text:   "Thank you for raising this. Your question has been flagged for a member of staff, who will respond here shortly.",
				Source: session.SourceSystem,
			}, nil
		}
	}

	if hit, ok := staticQAs[q]; ok {
		return replyFrom(hit), nil
	}
	// Containment pass: prefer the longest prompt embedded in the question,
	// so "what are the school fees please" still hits the fees answer.
	var bestKey string
	for key := range staticQAs {
		if strings.Contains(q, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return replyFrom(staticQAs[bestKey]), nil
	}

	return Reply{Text: fallbackText, Source: session.SourceBot}, nil
}

func replyFrom(hit qa) Reply {
	return Reply{
		Text:      hit.answer,
		Source:    session.SourceBot,
		URL:       hit.url,
		LinkLabel: hit.linkLabel,
	}
}

func normalize(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	return strings.TrimRight(q, "?!. ")
}
