package common

import (
	"errors"
	"fmt"

	"github.com/niksrid/sendsms-go/pkg/msg91"
)

// ErrTransient and ErrPermanent are sentinel errors adapters will use when
// classifying gateway failures.
var (
	ErrTransient = errors.New("transient error")
	ErrPermanent = errors.New("permanent error")
)

// WrapTransient annotates an error so callers can detect transient failures.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// WrapPermanent annotates an error as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Classify wraps an error returned by the msg91 client. Transport failures
// may succeed on a later attempt; caller input and gateway rejections won't.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrPermanent) {
		return err
	}

	var gwErr *msg91.GatewayError
	var trErr *msg91.TransportError
	switch {
	case errors.Is(err, msg91.ErrCallerInput), errors.As(err, &gwErr):
		return WrapPermanent(err)
	case errors.As(err, &trErr):
		return WrapTransient(err)
	default:
		return WrapTransient(err)
	}
}

// FailureClass names the class of a classified error for status events.
func FailureClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermanent):
		return "permanent"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}
