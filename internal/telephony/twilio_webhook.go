package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"call-assistant/internal/dialogue"
)

// TwilioVoiceForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/twiml/gather#action
//
// SpeechResult is nil when the field is absent, which is the case for the
// initial call webhook. A present but blank value is an empty transcription.
type TwilioVoiceForm struct {
	CallSid      string
	AccountSid   string
	From         string
	To           string
	CallStatus   string
	SpeechResult *string
	Confidence   float64
}

func ParseTwilioVoice(r *http.Request) (TwilioVoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioVoiceForm{}, err
	}
	f := TwilioVoiceForm{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		CallStatus: r.PostFormValue("CallStatus"),
	}
	if vals, ok := r.PostForm["SpeechResult"]; ok && len(vals) > 0 {
		speech := vals[0]
		f.SpeechResult = &speech
	}
	if c := r.PostFormValue("Confidence"); c != "" {
		if v, err := strconv.ParseFloat(c, 64); err == nil {
			f.Confidence = v
		}
	}
	return f, nil
}

func normalizePhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}

func (f TwilioVoiceForm) ToTurnRequest() dialogue.TurnRequest {
	return dialogue.TurnRequest{
		CallID:          f.CallSid,
		ToNumber:        f.To,
		From:            f.From,
		CallerUtterance: f.SpeechResult,
	}
}

// LogAttrs returns the webhook fields attached to every log line of the turn.
func (f TwilioVoiceForm) LogAttrs() []any {
	attrs := []any{"call_sid", f.CallSid, "account_sid", f.AccountSid, "call_status", f.CallStatus}
	if f.SpeechResult != nil {
		attrs = append(attrs, "speech_confidence", f.Confidence)
	}
	return attrs
}
