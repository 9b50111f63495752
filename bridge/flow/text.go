package flow

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	spokenAt      = regexp.MustCompile(`\bat\b`)
	spokenDot     = regexp.MustCompile(`\bdot\b`)
	anyWhitespace = regexp.MustCompile(`\s+`)
)

// ReconstructEmail rebuilds an address from spelled-out speech: lowercase,
// spoken "at"/"dot" become "@"/"." and all whitespace is stripped.
func ReconstructEmail(spoken string) string {
	email := strings.ToLower(spoken)
	email = spokenAt.ReplaceAllString(email, "@")
	email = spokenDot.ReplaceAllString(email, ".")
	return anyWhitespace.ReplaceAllString(email, "")
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// SpellOutEmail renders an address character by character for audio
// read-back.
func SpellOutEmail(email string) string {
	return strings.Join(strings.Split(email, ""), " ")
}

// Sanitize collapses newlines and trims a transcribed utterance.
func Sanitize(text string) string {
	text = strings.NewReplacer("\n", " ", "\r", " ").Replace(text)
	return strings.TrimSpace(text)
}

var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseTime parses a natural-language time expression relative to now.
func ParseTime(text string, now time.Time) (time.Time, bool) {
	r, err := timeParser.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// Consent words must match on word boundaries: "define" contains "fine"
// and "yesterday" contains "yes", and neither is a yes.
var affirmativePattern = regexp.MustCompile(
	`\b(?:yes|yeah|sure|absolutely|of course|please do|ok(?:ay)?|fine|go ahead|redirect me|connect me)\b`)

// IsAffirmative classifies consent from a fixed, case-insensitive phrase
// set; anything that matches none of the patterns is negative. A
// deliberate closed-world simplification, not an NLU model.
func IsAffirmative(text string) bool {
	return affirmativePattern.MatchString(strings.ToLower(text))
}

var bookingIntentPhrases = []string{
	"training session",
	"book a training",
	"schedule a training",
}

// HasBookingIntent reports whether an AI reply opened the scheduling flow.
func HasBookingIntent(text string) bool {
	lowered := strings.ToLower(text)
	for _, p := range bookingIntentPhrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// DefaultMemoryKeywords gates long-term-memory lookups on user turns.
var DefaultMemoryKeywords = []string{
	"preference",
	"likes",
	"dislikes",
	"favorite",
	"history",
	"previous",
	"last time",
	"company",
	"birthday",
	"address",
}

// MemoryRelevant reports whether an utterance should trigger a
// memory-augmented prompt.
func MemoryRelevant(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

var topicPrefixes = regexp.MustCompile(`^The user |^User |^The AI |^AI |^The conversation was about `)
var topicAskedAbout = regexp.MustCompile(`asked (about|for) `)

// SummarizeTopic reduces a stored conversation summary to a short topic
// phrase for the returning-caller greeting.
func SummarizeTopic(summary string) string {
	clean := topicPrefixes.ReplaceAllString(summary, "")
	clean = topicAskedAbout.ReplaceAllString(clean, "")

	topic := strings.TrimSpace(strings.SplitN(clean, ".", 2)[0])
	if len(topic) > 50 {
		return topic[:47] + "..."
	}
	return topic
}
