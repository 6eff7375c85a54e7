package dialogue

import (
	"regexp"
	"strings"
)

// Intent is the classified meaning of a receptionist's spoken turn.
type Intent string

const (
	IntentYes    Intent = "yes"
	IntentNo     Intent = "no"
	IntentTime   Intent = "time"
	IntentHold   Intent = "hold"
	IntentWalkIn Intent = "walkin"
	IntentOther  Intent = "other"
)

// holdPatterns match phrases that put the agent on hold. Hold detection runs
// before everything else: "yes, one moment" during a hold must not read as a
// confirmation.
var holdPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(hold|holding)\s*(on|please|the line)?\b`),
	regexp.MustCompile(`(?i)\bone\s*(moment|min(ute)?|sec(ond)?)\b`),
	regexp.MustCompile(`(?i)\bjust\s*a\s*(moment|min(ute)?|sec(ond)?)\b`),
	regexp.MustCompile(`(?i)\bgive\s*me\s*a\s*(moment|min(ute)?|sec(ond)?)\b`),
	regexp.MustCompile(`(?i)\bbear\s*with\s*me\b`),
	regexp.MustCompile(`(?i)\blet\s*me\s*check\b`),
	regexp.MustCompile(`(?i)\bbe\s*right\s*(back|with\s*you)\b`),
	regexp.MustCompile(`(?i)\bstay\s*on\s*the\s*line\b`),
}

// walkInPatterns match clinics that take unscheduled arrivals instead of slots.
var walkInPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwalk[\s-]*ins?\b`),
	regexp.MustCompile(`(?i)\bno\s*appointment\s*(needed|necessary|required)\b`),
	regexp.MustCompile(`(?i)\bfirst\s*come,?\s*first\s*serve(d)?\b`),
	regexp.MustCompile(`(?i)\bjust\s*(come|stop|drop)\s*(on\s*)?(in|by)\b`),
}

var yesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|yup|sure|absolutely|certainly|of course|ok(ay)?|sounds good|that works|correct|right|definitely|perfect)\b`),
	regexp.MustCompile(`(?i)\bthat\s*(works|is|'s)\s*(fine|great|perfect|good)\b`),
	regexp.MustCompile(`(?i)\bwe\s*can\s*do\s*that\b`),
	regexp.MustCompile(`(?i)\bbook(ed)?\s*(you|them|it)\s*in\b`),
}

var noPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(no|nope|nah|sorry)\b`),
	regexp.MustCompile(`(?i)\b(not|nothing)\s*(available|open|free)\b`),
	regexp.MustCompile(`(?i)\b(fully\s*)?booked\s*(up|out|solid)?\b`),
	regexp.MustCompile(`(?i)\bwon'?t\s*work\b`),
	regexp.MustCompile(`(?i)\bdon'?t\s*have\s*(any(thing)?|that|an?\s*(opening|slot))\b`),
	regexp.MustCompile(`(?i)\bno\s*(openings?|slots?|availability)\b`),
}

// timePatterns match date/time cues: weekday names, relative days, clock
// times, and parts of the day.
var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	regexp.MustCompile(`(?i)\b(today|tomorrow|tonight)\b`),
	regexp.MustCompile(`(?i)\b(next|this)\s*week\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s*(am|pm|o'?clock)\b`),
	regexp.MustCompile(`(?i)\b(morning|afternoon|evening|noon|midday)\b`),
	regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}(st|nd|rd|th)\b`),
}

// Classify maps a raw recognized utterance to a closed intent set. Evaluation
// order is load-bearing: hold first, then walk-in, then yes/no, then time
// cues. Anything else is IntentOther, which escalates to the conversational
// fallback.
func Classify(utterance string) Intent {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return IntentOther
	}
	if matchesAny(utterance, holdPatterns) {
		return IntentHold
	}
	if matchesAny(utterance, walkInPatterns) {
		return IntentWalkIn
	}
	if matchesAny(utterance, yesPatterns) {
		return IntentYes
	}
	if matchesAny(utterance, noPatterns) {
		return IntentNo
	}
	if matchesAny(utterance, timePatterns) {
		return IntentTime
	}
	return IntentOther
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, pat := range patterns {
		if pat.MatchString(s) {
			return true
		}
	}
	return false
}
