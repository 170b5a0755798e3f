package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	common "github.com/niksrid/sendsms-go/internal/adapters/common"
	"github.com/niksrid/sendsms-go/internal/health"
	"github.com/niksrid/sendsms-go/internal/models"
	smsvalidator "github.com/niksrid/sendsms-go/internal/worker/validator/sms"
	"github.com/niksrid/sendsms-go/pkg/msg91"
)

// statusClientClosedRequest reports a send abandoned because the client went
// away.
const statusClientClosedRequest = 499

// Validator normalizes and checks a request built from an HTTP body.
type Validator interface {
	Validate(req *models.SMSRequest) error
}

// BatchRequest is the body of POST /v1/sms.
type BatchRequest struct {
	To       []string          `json:"to"`
	Messages []string          `json:"messages"`
	Country  string            `json:"country"`
	TraceID  string            `json:"trace_id"`
	Meta     map[string]string `json:"meta"`
}

// FlowRequest is the body of POST /v1/sms/flow.
type FlowRequest struct {
	To      []string          `json:"to"`
	FlowID  string            `json:"flow_id"`
	Params  json.RawMessage   `json:"params"`
	TraceID string            `json:"trace_id"`
	Meta    map[string]string `json:"meta"`
}

// SendResponse is returned for every send, successful or not.
type SendResponse struct {
	MessageID        string                   `json:"message_id"`
	ProviderResponse *common.ProviderResponse `json:"provider_response,omitempty"`
	Error            string                   `json:"error,omitempty"`
}

// API serves synchronous sends over HTTP.
type API struct {
	logger    zerolog.Logger
	adapter   common.Adapter
	validator Validator
	newID     func() string
	now       func() time.Time
}

// Option customises the API.
type Option func(*API)

// WithIDs overrides message id generation.
func WithIDs(next func() string) Option {
	return func(a *API) {
		if next != nil {
			a.newID = next
		}
	}
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds an API around an adapter and validator.
func New(adapter common.Adapter, validator Validator, logger zerolog.Logger, opts ...Option) (*API, error) {
	if adapter == nil {
		return nil, errors.New("api: adapter dependency is required")
	}
	if validator == nil {
		return nil, errors.New("api: validator dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &API{
		logger:    logger,
		adapter:   adapter,
		validator: validator,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Router returns the HTTP handler with all routes registered.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())

	r.GET("/healthz", health.Handler())
	v1 := r.Group("/v1")
	v1.POST("/sms", a.sendBatch)
	v1.POST("/sms/flow", a.sendFlow)
	return r
}

func (a *API) sendBatch(c *gin.Context) {
	var body BatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, SendResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	a.send(c, &models.SMSRequest{
		Kind:     models.KindBatch,
		To:       body.To,
		Messages: body.Messages,
		Country:  body.Country,
		TraceID:  body.TraceID,
		Meta:     body.Meta,
	})
}

func (a *API) sendFlow(c *gin.Context) {
	var body FlowRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, SendResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	a.send(c, &models.SMSRequest{
		Kind:    models.KindFlow,
		To:      body.To,
		FlowID:  body.FlowID,
		Params:  body.Params,
		TraceID: body.TraceID,
		Meta:    body.Meta,
	})
}

func (a *API) send(c *gin.Context, req *models.SMSRequest) {
	req.MessageID = a.newID()
	req.CreatedAt = a.now()

	if err := a.validator.Validate(req); err != nil {
		c.JSON(http.StatusBadRequest, SendResponse{MessageID: req.MessageID, Error: err.Error()})
		return
	}

	resp, err := a.adapter.Send(c.Request.Context(), &common.ValidatedMessage{
		MessageID: req.MessageID,
		TraceID:   req.TraceID,
		CreatedAt: req.CreatedAt,
		Request:   req,
	})
	out := SendResponse{MessageID: req.MessageID, ProviderResponse: resp}
	if err != nil {
		out.Error = err.Error()
		c.JSON(statusFor(err), out)
		return
	}
	c.JSON(http.StatusOK, out)
}

// statusFor maps a send error onto an HTTP status. Caller mistakes are 400,
// gateway rejections 502, and timeouts 504.
func statusFor(err error) int {
	var netErr net.Error
	var gwErr *msg91.GatewayError
	switch {
	case errors.Is(err, smsvalidator.ErrInvalidRequest), errors.Is(err, msg91.ErrCallerInput):
		return http.StatusBadRequest
	case errors.As(err, &gwErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := a.logger.Info()
		if status >= http.StatusInternalServerError {
			event = a.logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
