package msg91

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultErrorCode is assigned to gateway errors that arrive without a code.
const DefaultErrorCode = 201

const errorType = "error"

// Response is a decoded gateway reply. The body is kept as received so fields
// the library does not interpret reach the caller untouched.
type Response struct {
	StatusCode int
	raw        []byte
}

// NewResponse wraps a raw JSON body.
func NewResponse(statusCode int, raw []byte) *Response {
	return &Response{StatusCode: statusCode, raw: append([]byte(nil), raw...)}
}

// Raw returns a copy of the JSON body.
func (r *Response) Raw() []byte {
	return append([]byte(nil), r.raw...)
}

// Get looks up a gjson path in the body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Type returns the gateway "type" field.
func (r *Response) Type() string {
	return r.Get("type").String()
}

// Code returns the gateway "code" field, zero when absent.
func (r *Response) Code() int64 {
	return r.Get("code").Int()
}

// Message returns the gateway "message" field.
func (r *Response) Message() string {
	return r.Get("message").String()
}

// IsError reports whether the gateway flagged the reply as an error.
func (r *Response) IsError() bool {
	t := r.Get("type")
	return t.Type == gjson.String && t.Str == errorType
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.raw, v)
}

// MarshalJSON emits the body unchanged.
func (r *Response) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw(), nil
}

// classify passes successful replies through and turns error replies into a
// GatewayError, filling in DefaultErrorCode when the gateway left the code
// out or empty.
func classify(resp *Response) (*Response, error) {
	if !resp.IsError() {
		return resp, nil
	}
	if !truthy(resp.Get("code")) {
		raw, err := sjson.SetBytes(resp.raw, "code", DefaultErrorCode)
		if err == nil {
			resp.raw = raw
		}
	}
	return resp, &GatewayError{Response: resp}
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	default:
		return true
	}
}
