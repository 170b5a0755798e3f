package msg91

import (
	"errors"
	"fmt"
)

// ErrCallerInput marks failures detected before any request is sent.
var ErrCallerInput = errors.New("msg91: invalid input")

var (
	// ErrInvalidRecipients is returned when no mobile numbers were supplied.
	ErrInvalidRecipients = fmt.Errorf("%w: mobile numbers should not be empty", ErrCallerInput)
	// ErrEmptyMessageBatch is returned when normalization left nothing to send.
	ErrEmptyMessageBatch = fmt.Errorf("%w: message batch should not be empty", ErrCallerInput)
)

var (
	// ErrMalformedResponse is wrapped by a TransportError when the gateway
	// body is not a JSON object.
	ErrMalformedResponse = errors.New("response body is not a json object")
	// ErrResponseTooLarge is wrapped by a TransportError when the gateway
	// body exceeds the configured limit.
	ErrResponseTooLarge = errors.New("response body exceeds size limit")
)

// TransportError reports a failed HTTP exchange or an undecodable response.
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("msg91: %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GatewayError carries a response the gateway flagged with type "error".
type GatewayError struct {
	Response *Response
}

func (e *GatewayError) Error() string {
	if e.Response == nil {
		return "msg91: gateway error"
	}
	msg := e.Response.Message()
	if msg == "" {
		msg = "gateway reported an error"
	}
	return fmt.Sprintf("msg91: gateway error %d: %s", e.Response.Code(), msg)
}

// Code returns the gateway error code, DefaultErrorCode when the gateway sent none.
func (e *GatewayError) Code() int64 {
	if e.Response == nil {
		return DefaultErrorCode
	}
	return e.Response.Code()
}
