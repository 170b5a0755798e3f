package msg91

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public Msg91 API host.
	DefaultBaseURL = "https://api.msg91.com"
	// DefaultTimeout bounds a single send unless WithTimeout overrides it.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBodyBytes bounds how much of a gateway reply is buffered.
	DefaultMaxBodyBytes int64 = 1 << 20

	batchPath     = "/api/v2/sendsms"
	flowPath      = "/api/v5/flow/?response=json"
	authKeyHeader = "authkey"
)

// Credentials identify the account and the sender used for batch sends.
type Credentials struct {
	AuthKey  string
	SenderID string
	RouteID  string
}

// BatchRequest is the body of an ad-hoc batch send.
type BatchRequest struct {
	Sender  string     `json:"sender"`
	Route   string     `json:"route"`
	Country string     `json:"country"`
	SMS     []Envelope `json:"sms"`
}

// FlowRequest is the body of a templated send. FlowID and TemplateID always
// carry the same value.
type FlowRequest struct {
	Recipients any    `json:"recipients,omitempty"`
	Mobiles    string `json:"mobiles"`
	AuthKey    string `json:"authkey"`
	FlowID     string `json:"flow_id"`
	TemplateID string `json:"template_id"`
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to talk to the gateway.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL sets the gateway base URL. Useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithTimeout bounds each send. Zero disables the bound and leaves only the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithMaxBodyBytes adjusts how many bytes of a reply are buffered.
func WithMaxBodyBytes(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// WithLogger attaches a logger for debug traces of each exchange.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDs overrides how per-call request IDs are generated.
func WithRequestIDs(next func() string) Option {
	return func(c *Client) {
		if next != nil {
			c.newID = next
		}
	}
}

// Client sends SMS through the Msg91 gateway. It is safe for concurrent use;
// nothing is mutated after New returns.
type Client struct {
	creds        Credentials
	httpClient   HTTPClient
	baseURL      string
	timeout      time.Duration
	maxBodyBytes int64
	logger       zerolog.Logger
	newID        func() string
}

// New constructs a client for the supplied credentials.
func New(creds Credentials, opts ...Option) (*Client, error) {
	if strings.TrimSpace(creds.AuthKey) == "" {
		return nil, errors.New("msg91: auth key is required")
	}

	c := &Client{
		creds:        creds,
		httpClient:   &http.Client{},
		baseURL:      DefaultBaseURL,
		timeout:      DefaultTimeout,
		maxBodyBytes: DefaultMaxBodyBytes,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if reflect.ValueOf(c.logger).IsZero() {
		c.logger = zerolog.Nop()
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	return c, nil
}

// SendSMS sends every message in messages to the same recipients.
func (c *Client) SendSMS(ctx context.Context, recipients, messages Input, countryDialCode string) (*Response, error) {
	return c.SendSMSRequest(ctx, recipients, messages, countryDialCode)
}

// SendSMSRequest normalizes the input into a batch and posts it. Caller input
// errors are returned before any request is made.
func (c *Client) SendSMSRequest(ctx context.Context, recipients, messages Input, countryDialCode string) (*Response, error) {
	envelopes, err := BuildEnvelopes(recipients, messages)
	if err != nil {
		return nil, err
	}
	if len(envelopes) == 0 {
		return nil, ErrEmptyMessageBatch
	}

	body := BatchRequest{
		Sender:  c.creds.SenderID,
		Route:   c.creds.RouteID,
		Country: countryDialCode,
		SMS:     envelopes,
	}
	return c.send(ctx, requestSpec{method: http.MethodPost, path: batchPath, body: body})
}

// SendSMSFlow fills the flow template flowID with params for recipient.
func (c *Client) SendSMSFlow(ctx context.Context, recipient, flowID string, params any) (*Response, error) {
	body := FlowRequest{
		Recipients: params,
		Mobiles:    recipient,
		AuthKey:    c.creds.AuthKey,
		FlowID:     flowID,
		TemplateID: flowID,
	}
	return c.send(ctx, requestSpec{method: http.MethodPost, path: flowPath, body: body})
}

// SendSMSTemplate is an alias of SendSMSFlow.
func (c *Client) SendSMSTemplate(ctx context.Context, recipient, flowID string, params any) (*Response, error) {
	return c.SendSMSFlow(ctx, recipient, flowID, params)
}

func (c *Client) send(ctx context.Context, spec requestSpec) (*Response, error) {
	log := c.logger.With().
		Str("request_id", c.newID()).
		Str("endpoint", spec.path).
		Logger()

	start := time.Now()
	resp, err := c.performRequest(ctx, spec)
	if err != nil {
		log.Debug().Err(err).Dur("duration", time.Since(start)).Msg("msg91 request failed")
		return nil, err
	}

	resp, err = classify(resp)
	log.Debug().
		Int("status", resp.StatusCode).
		Str("type", resp.Type()).
		Dur("duration", time.Since(start)).
		AnErr("gateway_error", err).
		Msg("msg91 request completed")
	return resp, err
}
