package sms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	common "github.com/niksrid/sendsms-go/internal/adapters/common"
	"github.com/niksrid/sendsms-go/internal/models"
	"github.com/niksrid/sendsms-go/pkg/msg91"
)

// Gateway is the part of *msg91.Client the adapter needs.
type Gateway interface {
	SendSMS(ctx context.Context, recipients, messages msg91.Input, countryDialCode string) (*msg91.Response, error)
	SendSMSFlow(ctx context.Context, recipient, flowID string, params any) (*msg91.Response, error)
}

// Option modifies adapter behaviour.
type Option func(*Adapter)

// WithRawBodyLimit overrides how much of the gateway body is kept in responses.
func WithRawBodyLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxRawChars = limit
		}
	}
}

// Adapter implements common.Adapter on top of the msg91 client.
type Adapter struct {
	logger      zerolog.Logger
	gateway     Gateway
	maxRawChars int
}

// NewAdapter constructs an SMS adapter for the supplied gateway.
func NewAdapter(gateway Gateway, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if gateway == nil {
		return nil, errors.New("sms adapter: gateway dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:      logger,
		gateway:     gateway,
		maxRawChars: common.DefaultRawBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Send dispatches a batch request through SendSMS and a flow request through
// SendSMSFlow. The returned error is classified transient or permanent; a
// ProviderResponse is returned whenever the gateway replied.
func (a *Adapter) Send(ctx context.Context, msg *common.ValidatedMessage) (*common.ProviderResponse, error) {
	if msg == nil || msg.Request == nil {
		return nil, common.WrapPermanent(errors.New("sms adapter: message request is nil"))
	}
	req := msg.Request

	var (
		resp *msg91.Response
		err  error
	)
	switch req.Kind {
	case models.KindBatch:
		resp, err = a.gateway.SendSMS(ctx, msg91.List(req.To...), msg91.List(req.Messages...), req.Country)
	case models.KindFlow:
		var params any
		if len(req.Params) > 0 {
			params = req.Params
		}
		resp, err = a.gateway.SendSMSFlow(ctx, strings.Join(req.To, msg91.Delimiter), req.FlowID, params)
	default:
		return nil, common.WrapPermanent(fmt.Errorf("sms adapter: unsupported kind %q", req.Kind))
	}

	out := common.FromGateway(resp, a.maxRawChars)
	log := a.logger.With().
		Str("message_id", req.MessageID).
		Str("kind", req.Kind).
		Int("recipients", len(req.To)).
		Logger()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return out, err
		}
		classified := common.Classify(err)
		event := log.Warn().Str("failure_class", common.FailureClass(classified)).Err(err)
		if out != nil && out.Code != nil {
			event = event.Int("gateway_code", *out.Code)
		}
		event.Msg("sms adapter send failed")
		return out, classified
	}

	if out == nil {
		return nil, common.WrapTransient(errors.New("sms adapter: gateway returned no response"))
	}
	log.Debug().Str("gateway_message", out.Message).Msg("sms adapter send succeeded")
	return out, nil
}
