package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultPreviewLimit bounds how much of an undecodable body is kept for diagnosis.
const DefaultPreviewLimit = 500

// statusOK is the debug agent's success marker.
const statusOK = "ok"

// Envelope is the normalized result of one agent response.
type Envelope struct {
	OK bool
	// Payload holds action specific data. For the success-flag convention this is
	// the whole response object, for the status convention it is the nested data.
	Payload json.RawMessage
	Error   string
}

// DecodeError reports a body that is not a structured agent response.
type DecodeError struct {
	StatusCode int
	Preview    string
	Err        error
}

func (e *DecodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("invalid response (http %d): %v: %q", e.StatusCode, e.Err, e.Preview)
	}
	return fmt.Sprintf("invalid response: %v: %q", e.Err, e.Preview)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errNotObject = errors.New("response is not a JSON object")

// Preview returns at most limit characters of body.
func Preview(body []byte, limit int) string {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	i, n := 0, 0
	for i < len(body) && n < limit {
		_, size := utf8.DecodeRune(body[i:])
		i += size
		n++
	}
	return string(body[:i])
}

func decodeObject(body []byte, limit int) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &DecodeError{Preview: Preview(body, limit), Err: err}
	}
	if fields == nil {
		return nil, &DecodeError{Preview: Preview(body, limit), Err: errNotObject}
	}
	return fields, nil
}

// errorText renders the error field. Non-string values are kept verbatim.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(raw)
}

// DecodeSuccessFlag decodes the file agent convention:
//
//	{"success": true, "content": "..."}
//	{"success": false, "error": "..."}
//
// A missing success field counts as failure.
func DecodeSuccessFlag(body []byte, limit int) (Envelope, error) {
	fields, err := decodeObject(body, limit)
	if err != nil {
		return Envelope{}, err
	}

	var ok bool
	if raw, present := fields["success"]; present {
		if err := json.Unmarshal(raw, &ok); err != nil {
			return Envelope{}, &DecodeError{
				Preview: Preview(body, limit),
				Err:     fmt.Errorf("success field is not a boolean: %w", err),
			}
		}
	}

	env := Envelope{OK: ok, Error: errorText(fields["error"])}
	if ok {
		env.Payload = json.RawMessage(bytes.TrimSpace(body))
	} else if env.Error == "" {
		env.Error = "agent did not report success"
	}
	return env, nil
}

// DecodeStatusField decodes the debug agent convention:
//
//	{"status": "ok", "action": "info", "data": {...}}
//	{"status": "error", "error": "..."}
//
// The agent answers unknown actions with status "ok" and a top level error, so an
// error field also marks the response as failed.
func DecodeStatusField(body []byte, limit int) (Envelope, error) {
	fields, err := decodeObject(body, limit)
	if err != nil {
		return Envelope{}, err
	}

	var status string
	if raw, present := fields["status"]; present {
		if err := json.Unmarshal(raw, &status); err != nil {
			return Envelope{}, &DecodeError{
				Preview: Preview(body, limit),
				Err:     fmt.Errorf("status field is not a string: %w", err),
			}
		}
	}

	env := Envelope{Error: errorText(fields["error"])}
	env.OK = status == statusOK && env.Error == ""
	if env.OK {
		env.Payload = fields["data"]
	} else if env.Error == "" {
		env.Error = fmt.Sprintf("agent returned status %q", status)
	}
	return env, nil
}
