package telephony

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/carelineai/concierge/internal/dialogue"
)

// TwiML verb structs. Only the verbs the dialogue needs are modeled.

type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	Verbs         []any
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

// Response is the TwiML document root.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

const voiceName = "Polly.Joanna"

// RenderTurn converts a dialogue turn result into a TwiML document. Spoken
// lines go inside the Gather so the receptionist can barge in mid-sentence;
// a trailing Redirect turns a silent gather timeout into an empty-utterance
// turn instead of a dead call.
func RenderTurn(result *dialogue.TurnResult, gatherAction string) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("telephony: nil turn result")
	}

	var resp Response

	if result.Hangup {
		for _, line := range result.Say {
			resp.Verbs = append(resp.Verbs, Say{Voice: voiceName, Text: line})
		}
		resp.Verbs = append(resp.Verbs, Hangup{})
		return marshalTwiML(resp)
	}

	if result.Gather {
		gather := Gather{
			Input:         "speech",
			Action:        gatherAction,
			Method:        "POST",
			SpeechTimeout: "auto",
			Timeout:       int(result.GatherTimeout / time.Second),
		}
		for _, line := range result.Say {
			gather.Verbs = append(gather.Verbs, Say{Voice: voiceName, Text: line})
		}
		if result.Pause > 0 {
			gather.Verbs = append(gather.Verbs, Pause{Length: int(result.Pause / time.Second)})
		}
		resp.Verbs = append(resp.Verbs, gather)
		resp.Verbs = append(resp.Verbs, Redirect{Method: "POST", URL: gatherAction})
		return marshalTwiML(resp)
	}

	for _, line := range result.Say {
		resp.Verbs = append(resp.Verbs, Say{Voice: voiceName, Text: line})
	}
	return marshalTwiML(resp)
}

func marshalTwiML(resp Response) ([]byte, error) {
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("telephony: marshal twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
