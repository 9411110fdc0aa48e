package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsuccessful is returned when a success envelope reports success=false.
var ErrUnsuccessful = errors.New("backend reported failure")

// maxDetailLen caps how much of a non-JSON error body ends up in an error message.
const maxDetailLen = 512

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Detail)
}

// newHTTPError extracts FastAPI's {"detail": ...} from body, falling back to the raw text.
func newHTTPError(status int, body []byte) *HTTPError {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	detail := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case len(envelope.Detail) > 0:
			var s string
			if json.Unmarshal(envelope.Detail, &s) == nil {
				detail = s
			} else {
				detail = string(envelope.Detail)
			}
		case envelope.Message != "":
			detail = envelope.Message
		case envelope.Error != "":
			detail = envelope.Error
		}
	}
	if detail == "" {
		detail = strings.TrimSpace(string(body))
		if r := []rune(detail); len(r) > maxDetailLen {
			detail = string(r[:maxDetailLen]) + "..."
		}
	}
	return &HTTPError{StatusCode: status, Detail: detail}
}

// envelopeError turns a success=false envelope into an error.
func envelopeError(errMsg, message string) error {
	switch {
	case errMsg != "":
		return fmt.Errorf("%w: %s", ErrUnsuccessful, errMsg)
	case message != "":
		return fmt.Errorf("%w: %s", ErrUnsuccessful, message)
	}
	return ErrUnsuccessful
}
