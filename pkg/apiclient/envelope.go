package apiclient

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Pagination is carried by list endpoints.
type Pagination struct {
	Pages int `json:"pages"`
}

// Envelope is the response shape shared by every endpoint of the service.
// Endpoint-specific top-level fields are read with Field.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`

	Raw        []byte `json:"-"`
	HTTPStatus int    `json:"-"`
}

func decodeEnvelope(status int, body []byte) (*Envelope, error) {
	env := &Envelope{Raw: body, HTTPStatus: status}
	if err := json.Unmarshal(body, env); err != nil {
		return nil, &Error{
			Kind:       KindServer,
			Message:    "server error: malformed response body",
			HTTPStatus: status,
			Err:        fmt.Errorf("decode envelope: %w", err),
		}
	}
	return env, nil
}

// UnmarshalJSON tolerates non-string "error" and "message" members.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var aux struct {
		Success    bool            `json:"success"`
		Data       json.RawMessage `json:"data"`
		Message    json.RawMessage `json:"message"`
		Pagination *Pagination     `json:"pagination"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Success = aux.Success
	e.Data = aux.Data
	e.Pagination = aux.Pagination
	if m := gjson.ParseBytes(aux.Message); m.Exists() && m.Type != gjson.Null {
		e.Message = m.String()
	}
	if er := gjson.GetBytes(b, "error"); er.Exists() && er.Type != gjson.Null {
		e.Error = er.String()
	}
	return nil
}

// Field returns a top-level or nested member of the raw body.
func (e *Envelope) Field(path string) gjson.Result {
	return gjson.GetBytes(e.Raw, path)
}

// Pages returns the page count, defaulting to 1.
func (e *Envelope) Pages() int {
	if e.Pagination == nil || e.Pagination.Pages < 1 {
		return 1
	}
	return e.Pagination.Pages
}

// DecodeData unmarshals the data member into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Err returns a KindServer error when the server answered success:false,
// using fallback when the body carries neither error nor message.
func (e *Envelope) Err(fallback string) error {
	if e.Success {
		return nil
	}
	detail := e.Error
	if detail == "" {
		detail = e.Message
	}
	if detail == "" {
		detail = fallback
	}
	return &Error{
		Kind:       KindServer,
		Message:    "server error: " + detail,
		HTTPStatus: e.HTTPStatus,
		Err:        fmt.Errorf("success=false: %s", detail),
	}
}
