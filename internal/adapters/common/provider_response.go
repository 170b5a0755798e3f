package common

import (
	"strconv"
	"unicode/utf8"

	"github.com/niksrid/sendsms-go/internal/models"
	"github.com/niksrid/sendsms-go/pkg/msg91"
)

// DefaultRawBodyLimit defines the maximum number of characters retained from a
// gateway response body when attaching it to a ProviderResponse.
const DefaultRawBodyLimit = 1024

// ProviderResponse is the normalized gateway reply carried in status events.
type ProviderResponse = models.ProviderResponse

// FromGateway builds a ProviderResponse from a msg91 reply. Status is "ok" for
// accepted replies and "rejected" for gateway errors.
func FromGateway(resp *msg91.Response, rawLimit int) *ProviderResponse {
	if resp == nil {
		return nil
	}

	out := &ProviderResponse{Status: "ok", Message: resp.Message()}
	if resp.IsError() {
		out.Status = "rejected"
		code := int(resp.Code())
		out.Code = &code
	}
	out.Raw = TruncateRaw(string(resp.Raw()), rawLimit)

	meta := map[string]string{}
	if t := resp.Type(); t != "" {
		meta["gateway_type"] = t
	}
	if resp.StatusCode != 0 {
		meta["http_status"] = strconv.Itoa(resp.StatusCode)
	}
	if len(meta) > 0 {
		out.Meta = meta
	}
	return out
}

// TruncateRaw trims the supplied string to the specified rune limit. If limit
// is zero or negative it returns an empty string.
func TruncateRaw(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
