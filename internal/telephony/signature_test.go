package telephony

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTwilioSignature_KnownVector(t *testing.T) {
	// Example from Twilio's request validation documentation.
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	got := TwilioSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", params)
	if got != "0/KCTR6DLpKmkAf8muzZqo1nDgQ=" {
		t.Fatalf("unexpected signature %q", got)
	}
}

func signedRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/voice", RequireTwilioSignature(token, "https://voice.example.com"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireTwilioSignature(t *testing.T) {
	r := signedRouter("secret")
	body := "CallSid=CA1&To=%2B1555"

	params, _ := url.ParseQuery(body)
	sig := TwilioSignature("secret", "https://voice.example.com/webhooks/twilio/voice", params)

	req := formRequest(body)
	req.Header.Set(headerTwilioSignature, sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected signed request to pass, got %d", w.Code)
	}

	req = formRequest(body)
	req.Header.Set(headerTwilioSignature, "bogus")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad signature, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, formRequest(body))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing signature, got %d", w.Code)
	}
}
