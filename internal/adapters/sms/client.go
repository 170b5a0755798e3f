package sms

import (
	"github.com/rs/zerolog"

	"github.com/niksrid/sendsms-go/internal/config"
	"github.com/niksrid/sendsms-go/pkg/msg91"
)

// NewClient builds the msg91 client described by cfg.
func NewClient(cfg config.Msg91Config, logger zerolog.Logger) (*msg91.Client, error) {
	return msg91.New(cfg.Credentials(),
		msg91.WithBaseURL(cfg.BaseURL),
		msg91.WithTimeout(cfg.Timeout()),
		msg91.WithMaxBodyBytes(cfg.MaxBodyBytes),
		msg91.WithLogger(logger),
	)
}
