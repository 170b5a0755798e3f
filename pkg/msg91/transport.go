package msg91

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type requestSpec struct {
	method string
	path   string
	body   any
}

// performRequest runs one HTTP exchange: it encodes the body, reads the whole
// reply within the size limit and checks that it is JSON. The connection is
// closed once the reply has been read.
func (c *Client) performRequest(ctx context.Context, spec requestSpec) (*Response, error) {
	var reader io.Reader
	if spec.body != nil {
		payload, err := encodeBody(spec.body)
		if err != nil {
			return nil, fmt.Errorf("msg91: encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, c.baseURL+spec.path, reader)
	if err != nil {
		return nil, &TransportError{Op: "new request", Endpoint: spec.path, Err: err}
	}
	req.Close = true
	req.Header.Set(authKeyHeader, c.creds.AuthKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "http do", Endpoint: spec.path, Err: err}
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read body", Endpoint: spec.path, Err: err}
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, &TransportError{Op: "decode", Endpoint: spec.path, Err: ErrMalformedResponse}
	}

	return &Response{StatusCode: resp.StatusCode, raw: body}, nil
}

func (c *Client) readBody(rc io.Reader) ([]byte, error) {
	if rc == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(rc, c.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBodyBytes {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// encodeBody marshals without HTML escaping so message text reaches the
// gateway as written.
func encodeBody(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
