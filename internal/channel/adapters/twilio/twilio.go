// Package twilio normalizes Twilio WhatsApp webhook deliveries and builds
// the synchronous TwiML reply envelope Twilio expects in the response body.
package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hakimhealth/hakim/internal/channel"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

const maxMemoryBytes = 1 << 20

// ParseWebhook normalizes a Twilio webhook request. Twilio posts
// application/x-www-form-urlencoded by default and multipart/form-data for
// some media deliveries; both are accepted. Anything else is unsupported.
func ParseWebhook(r *http.Request) (channel.InboundMessage, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return channel.InboundMessage{}, fmt.Errorf("%w: %v", channel.ErrUnsupportedPayload, err)
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return channel.InboundMessage{}, fmt.Errorf("parse form: %w", channel.ErrNoMessage)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
			return channel.InboundMessage{}, fmt.Errorf("parse multipart form: %w", channel.ErrNoMessage)
		}
	default:
		return channel.InboundMessage{}, fmt.Errorf("%w: content type %q", channel.ErrUnsupportedPayload, mediaType)
	}

	from := strings.TrimSpace(r.FormValue("From"))
	body := strings.TrimSpace(r.FormValue("Body"))
	mediaURL := strings.TrimSpace(r.FormValue("MediaUrl0"))
	mediaContentType := strings.TrimSpace(r.FormValue("MediaContentType0"))

	if from == "" || (body == "" && mediaURL == "") {
		return channel.InboundMessage{}, channel.ErrNoMessage
	}

	userID := channel.CanonicalUserID(from)
	if userID == "" {
		return channel.InboundMessage{}, channel.ErrNoMessage
	}

	now := time.Now()
	messageID := strings.TrimSpace(r.FormValue("MessageSid"))
	if messageID == "" {
		messageID = channel.FallbackMessageID(userID, now)
	}

	return channel.InboundMessage{
		Channel:    channel.TypeTwilio,
		UserID:     userID,
		Text:       body,
		MessageID:  messageID,
		Address:    from,
		MediaURL:   mediaURL,
		Voice:      strings.HasPrefix(mediaContentType, "audio/"),
		ReceivedAt: now,
	}, nil
}

// ValidateSignature checks the X-Twilio-Signature header against the auth
// token: base64 of HMAC-SHA1 over the request URL concatenated with the POST
// parameters sorted by name. The request form must already be parsed.
func ValidateSignature(r *http.Request, authToken string) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}

	keys := make([]string, 0, len(r.PostForm))
	for k := range r.PostForm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(requestURL(r)))
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte(r.PostForm.Get(k)))
	}
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// requestURL reconstructs the public URL Twilio signed. Behind a proxy the
// original scheme arrives in X-Forwarded-Proto.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// TwiML builds the inline reply envelope. An empty text produces an empty
// <Response/>, which acknowledges the webhook without sending anything.
func TwiML(text string) string {
	out, err := xml.Marshal(twimlResponse{Message: text})
	if err != nil {
		// Marshal of this struct cannot fail on any input string.
		out = []byte("<Response></Response>")
	}
	return xml.Header + string(out)
}
