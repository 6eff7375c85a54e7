package dialogue

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// spokenTimeLayout is the long human-readable form used in spoken
// confirmations and SMS bodies: "Tuesday, October 27 at 2:00 PM".
const spokenTimeLayout = "Monday, January 2 at 3:04 PM"

var timeParser = newTimeParser()

func newTimeParser() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}

// ParseSpokenTime converts a free-text time utterance into a display string,
// using referenceNow as the anchor for relative expressions ("tomorrow at 2").
// When parsing fails the utterance is returned verbatim: the conversation
// keeps moving with a human-readable value, and the patient reading the
// confirmation text can make sense of it.
func ParseSpokenTime(utterance string, referenceNow time.Time) string {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return trimmed
	}
	result, err := timeParser.Parse(trimmed, referenceNow)
	if err != nil || result == nil {
		return trimmed
	}
	return result.Time.Format(spokenTimeLayout)
}
