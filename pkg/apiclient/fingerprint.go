package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/pretty"
)

// Verb is the operation a request performs. It is part of the fingerprint,
// so an upload and a create against the same endpoint never collide.
type Verb string

const (
	VerbRead   Verb = "GET"
	VerbCreate Verb = "POST"
	VerbUpdate Verb = "PUT"
	VerbRemove Verb = "DELETE"
	VerbUpload Verb = "UPLOAD"
)

// Method returns the HTTP method used on the wire.
func (v Verb) Method() string {
	switch v {
	case VerbRead:
		return http.MethodGet
	case VerbUpdate:
		return http.MethodPut
	case VerbRemove:
		return http.MethodDelete
	default:
		return http.MethodPost
	}
}

// Safe reports whether repeating the verb cannot double-apply a write.
func (v Verb) Safe() bool {
	return v == VerbRead
}

var canonicalOptions = &pretty.Options{SortKeys: true}

// Fingerprint builds the throttle key for a request. Parameters are
// serialized as JSON with sorted object keys so logically identical requests
// map to the same key regardless of map or field ordering.
func Fingerprint(verb Verb, endpoint string, params any) (string, error) {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s", verb, endpoint, canonical), nil
}

func canonicalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fingerprint params: %w", err)
	}
	if string(raw) == "null" {
		return []byte("{}"), nil
	}
	return pretty.Ugly(pretty.PrettyOptions(raw, canonicalOptions)), nil
}
