package portal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is a non-2xx response from the portal.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "http error"
	}
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("http error: status=%d code=%s message=%s", e.StatusCode, strings.TrimSpace(e.Code), msg)
	}
	return fmt.Sprintf("http error: status=%d message=%s", e.StatusCode, msg)
}

// Temporary reports whether the request may succeed if sent again.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// parseHTTPError reads either {"message": ...} or {"error": {"message": ...}}.
func parseHTTPError(status int, raw []byte) error {
	body := strings.TrimSpace(string(raw))

	var env struct {
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
		Error   struct {
			Message string `json:"message"`
			Code    string `json:"code,omitempty"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if msg := strings.TrimSpace(env.Error.Message); msg != "" {
			return &HTTPError{StatusCode: status, Message: msg, Code: strings.TrimSpace(env.Error.Code), Body: body}
		}
		if msg := strings.TrimSpace(env.Message); msg != "" {
			return &HTTPError{StatusCode: status, Message: msg, Code: strings.TrimSpace(env.Code), Body: body}
		}
	}

	return &HTTPError{StatusCode: status, Body: body}
}
