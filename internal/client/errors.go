package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNetwork marks failures where no HTTP response was received.
	ErrNetwork = errors.New("client: network error")
	// ErrSessionExpired is returned when the stored token has expired.
	ErrSessionExpired = errors.New("client: session expired")
)

// maxTextMessage bounds plain-text bodies used as error messages.
const maxTextMessage = 512

// APIError is a non-2xx answer, or a 2xx write answer whose success
// indicator is false.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAuthFailure reports whether err is a 401 or 403 answer, or an expired session.
func IsAuthFailure(err error) bool {
	if errors.Is(err, ErrSessionExpired) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// UserMessage returns the human-readable message carried by err.
// API errors yield the server's message, network failures a generic text,
// anything else fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrNetwork) {
		return "network error: the server could not be reached"
	}
	return fallback
}

// messageFields are tried in order when extracting an error message.
var messageFields = []string{
	"message",
	"error",
	"error.message",
	"msg",
	"error.description",
}

// ExtractMessage derives a readable message from an error body:
// a JSON message field, then the raw text, then a generic text.
func ExtractMessage(statusCode int, body []byte) string {
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if parsed.IsObject() {
			for _, field := range messageFields {
				v := parsed.Get(field)
				if v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
					return strings.TrimSpace(v.Str)
				}
			}
			return genericMessage(statusCode)
		}
		if parsed.Type == gjson.String && strings.TrimSpace(parsed.Str) != "" {
			return strings.TrimSpace(parsed.Str)
		}
		if parsed.IsArray() {
			return genericMessage(statusCode)
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return genericMessage(statusCode)
	}
	if len(text) > maxTextMessage {
		text = text[:maxTextMessage]
	}
	return text
}

func genericMessage(statusCode int) string {
	return fmt.Sprintf("request failed with status %d", statusCode)
}

// successFields are the success indicators a write answer may carry.
// "succes" is a misspelling some backend handlers emit.
var successFields = []string{"success", "succes"}

// checkSuccess fails a 2xx answer that explicitly reports success=false.
func checkSuccess(statusCode int, body []byte) error {
	if !gjson.ValidBytes(body) {
		return nil
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil
	}
	for _, field := range successFields {
		v := parsed.Get(field)
		if v.Exists() && (v.Type == gjson.False || (v.Type == gjson.String && strings.EqualFold(v.Str, "false"))) {
			msg := ExtractMessage(statusCode, body)
			if msg == genericMessage(statusCode) {
				msg = "the server reported the request as unsuccessful"
			}
			return &APIError{StatusCode: statusCode, Message: msg, Body: body}
		}
	}
	return nil
}
