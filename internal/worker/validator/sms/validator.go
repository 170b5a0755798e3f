package smsvalidator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	common "github.com/niksrid/sendsms-go/internal/adapters/common"
	"github.com/niksrid/sendsms-go/internal/config"
	"github.com/niksrid/sendsms-go/internal/models"
	"github.com/niksrid/sendsms-go/internal/util"
)

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("sms validator: invalid request")

const maxCountryDigits = 4

// Validator decodes and checks SMS requests before they reach the gateway.
type Validator struct {
	logger         zerolog.Logger
	cfg            config.ValidationConfig
	defaultCountry string
}

// New constructs a Validator. defaultCountry is applied to batch requests that
// do not carry a country code.
func New(cfg config.ValidationConfig, defaultCountry string, logger zerolog.Logger) *Validator {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Validator{
		logger:         logger,
		cfg:            cfg,
		defaultCountry: strings.TrimSpace(defaultCountry),
	}
}

// ParseAndValidate decodes a JSON SMSRequest, rejecting unknown fields, and
// validates it.
func (v *Validator) ParseAndValidate(ctx context.Context, payload []byte) (*common.ValidatedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, invalid("payload is empty")
	}
	if err := util.EnsureMaxBytes("payload", payload, v.cfg.MsgMaxBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var req models.SMSRequest
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidRequest, err)
	}

	if err := v.Validate(&req); err != nil {
		// Keep what identifies the request so failures can still be reported.
		return &common.ValidatedMessage{
			MessageID: strings.TrimSpace(req.MessageID),
			TraceID:   strings.TrimSpace(req.TraceID),
			Request:   &req,
		}, err
	}

	raw := make([]byte, len(payload))
	copy(raw, payload)
	return &common.ValidatedMessage{
		MessageID:  req.MessageID,
		TraceID:    req.TraceID,
		CreatedAt:  req.CreatedAt,
		Request:    &req,
		RawPayload: raw,
	}, nil
}

// Validate normalizes req in place and reports the first rule it breaks.
func (v *Validator) Validate(req *models.SMSRequest) error {
	if req == nil {
		return invalid("request is required")
	}

	req.MessageID = strings.TrimSpace(req.MessageID)
	if _, err := util.ParseUUIDv4(req.MessageID); err != nil {
		return fmt.Errorf("%w: message_id: %v", ErrInvalidRequest, err)
	}
	req.TraceID = strings.TrimSpace(req.TraceID)

	if req.CreatedAt.IsZero() {
		return invalid("created_at is required")
	}
	req.CreatedAt = req.CreatedAt.UTC()

	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if req.Kind == "" {
		req.Kind = models.KindBatch
	}

	to, err := util.NormalizeMobiles(req.To, 1, v.cfg.RecipientsMax)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.To = to

	switch req.Kind {
	case models.KindBatch:
		err = v.validateBatch(req)
	case models.KindFlow:
		err = v.validateFlow(req)
	default:
		err = invalid(fmt.Sprintf("unsupported kind %q", req.Kind))
	}
	if err != nil {
		return err
	}

	meta, err := util.ValidateMetadata(req.Meta, v.cfg.MetaMaxEntries, v.cfg.MetaMaxKeyLen, v.cfg.MetaMaxValueLen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Meta = meta
	return nil
}

func (v *Validator) validateBatch(req *models.SMSRequest) error {
	if req.FlowID != "" || len(req.Params) > 0 {
		return invalid("flow_id and params are only valid for flow requests")
	}

	hasBody := false
	for idx, msg := range req.Messages {
		if strings.TrimSpace(msg) != "" {
			hasBody = true
		}
		if err := util.EnsureMaxRunes(fmt.Sprintf("messages[%d]", idx), msg, v.cfg.MessageMaxLen); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if !hasBody {
		return invalid("at least one non-blank message is required")
	}

	req.Country = strings.TrimSpace(req.Country)
	if req.Country == "" {
		req.Country = v.defaultCountry
	}
	return validateCountry(req.Country)
}

func (v *Validator) validateFlow(req *models.SMSRequest) error {
	if len(req.Messages) > 0 {
		return invalid("messages are not valid for flow requests")
	}
	req.FlowID = strings.TrimSpace(req.FlowID)
	if req.FlowID == "" {
		return invalid("flow_id is required for flow requests")
	}
	if len(req.Params) > 0 {
		params := gjson.ParseBytes(req.Params)
		if !params.IsArray() && !params.IsObject() {
			return invalid("params must be a JSON array or object")
		}
	}
	return nil
}

func validateCountry(country string) error {
	if country == "" {
		return nil
	}
	if len(country) > maxCountryDigits {
		return invalid(fmt.Sprintf("country %q is too long", country))
	}
	for _, r := range country {
		if r < '0' || r > '9' {
			return invalid(fmt.Sprintf("country %q must be numeric", country))
		}
	}
	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}
