package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"call-assistant/internal/dialogue"
)

// ContentType is the media type of every webhook response.
const ContentType = "text/xml"

// FallbackTwiML is written when rendering itself fails, so the caller always
// hears something before the call ends.
const FallbackTwiML = xml.Header + `<Response><Say>We're sorry, we are unable to take your call right now. Please call back later.</Say></Response>`

// Fixed texts for rejected turns and unanswered prompts.
const (
	ListenTimeoutText    = "We didn't hear anything. Goodbye!"
	NoSpeechText         = "Sorry, we didn't hear anything. Please call back when you're ready. Goodbye."
	TenantUnresolvedText = "We're sorry, we could not retrieve office information right now. Please call back later."
	GenericApologyText   = "We're sorry, we are unable to take your call right now. Please call back later."
)

// RenderOptions carries the telephony settings the renderer needs.
type RenderOptions struct {
	// Voice is the Twilio voice for assistant speech, e.g. Polly.Joanna-Neural.
	Voice string
	// ActionURL receives the next turn's speech result.
	ActionURL string
	// GatherTimeout is the number of seconds to wait for the caller to speak.
	GatherTimeout int
}

// TwiML is built from encoding/xml structs. Say bodies are escaped by
// escapeText and written as inner XML so they are never escaped twice.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",innerxml"`
}

type twimlGather struct {
	XMLName xml.Name  `xml:"Gather"`
	Input   string    `xml:"input,attr"`
	Action  string    `xml:"action,attr,omitempty"`
	Method  string    `xml:"method,attr"`
	Timeout int       `xml:"timeout,attr,omitempty"`
	Say     *twimlSay `xml:"Say,omitempty"`
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeText makes composed text safe for a Say body. It must run exactly
// once per text. Invalid UTF-8 and runes outside the XML character range are
// dropped first, since Twilio rejects a document that contains them.
func escapeText(s string) string {
	return textEscaper.Replace(xmlChars(s))
}

func xmlChars(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

// isXMLChar reports whether r is allowed by the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

func say(voice, text string) twimlSay {
	return twimlSay{Voice: voice, Text: escapeText(text)}
}

// RenderTwiML maps a turn outcome to a TwiML document.
func RenderTwiML(out dialogue.Outcome, opts RenderOptions) (string, error) {
	var r twimlResponse

	switch out.Kind {
	case dialogue.KindContinue:
		if strings.TrimSpace(out.Spoken) == "" && strings.TrimSpace(out.Prompt) == "" {
			return "", errors.New("telephony: continue outcome has nothing to say")
		}
		if out.Spoken != "" {
			r.Verbs = append(r.Verbs, say(opts.Voice, out.Spoken))
		}
		g := twimlGather{
			Input:   "speech",
			Action:  opts.ActionURL,
			Method:  "POST",
			Timeout: opts.GatherTimeout,
		}
		if out.Prompt != "" {
			s := say(opts.Voice, out.Prompt)
			g.Say = &s
		}
		r.Verbs = append(r.Verbs, g, say("", ListenTimeoutText))

	case dialogue.KindEnd:
		r.Verbs = append(r.Verbs, say(opts.Voice, out.Spoken))

	case dialogue.KindRejected:
		r.Verbs = append(r.Verbs, say(opts.Voice, rejectionText(out.Reason)))

	default:
		return "", fmt.Errorf("telephony: unknown outcome kind %q", out.Kind)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func rejectionText(reason dialogue.Reason) string {
	switch reason {
	case dialogue.ReasonEmptySpeech:
		return NoSpeechText
	case dialogue.ReasonTenantUnresolved:
		return TenantUnresolvedText
	default:
		return GenericApologyText
	}
}
