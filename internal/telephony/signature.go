package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"call-assistant/pkg/logger"
)

const headerTwilioSignature = "X-Twilio-Signature"

// TwilioSignature computes the X-Twilio-Signature value for a POST to
// fullURL with the given form parameters.
// Ref: https://www.twilio.com/docs/usage/security#validating-requests
func TwilioSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// RequireTwilioSignature rejects webhook requests not signed with authToken.
// baseURL is the public scheme+host Twilio posts to; empty means the request's
// own host, with X-Forwarded-Proto honored.
func RequireTwilioSignature(authToken, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		got := c.GetHeader(headerTwilioSignature)
		if got == "" {
			log.Warn("twilio signature missing")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			log.Warn("twilio signature: parse form", "err", err)
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		want := TwilioSignature(authToken, requestURL(c.Request, baseURL), c.Request.PostForm)
		if !hmac.Equal([]byte(got), []byte(want)) {
			log.Warn("twilio signature mismatch", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func requestURL(r *http.Request, baseURL string) string {
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
			scheme = p
		}
		baseURL = scheme + "://" + r.Host
	}
	return strings.TrimRight(baseURL, "/") + r.URL.RequestURI()
}
