package cad

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FetchErrorKind classifies why a fetch produced no payload.
type FetchErrorKind string

const (
	// KindProviderDetail: the provider rejected the request and explained why.
	KindProviderDetail FetchErrorKind = "provider_error"
	// KindProviderNoDetail: the provider rejected the request, or answered
	// with something that is not JSON, and the body carried no usable detail.
	KindProviderNoDetail FetchErrorKind = "provider_error_no_detail"
	// KindTransport: no usable response was received at all.
	KindTransport FetchErrorKind = "transport_error"
)

// NoDetail is the detail reported when the provider's error body is unreadable.
const NoDetail = "no additional detail"

// FetchError reports a failed fetch. It is the only error type Fetch returns.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int    // zero for transport failures
	Detail     string // human-readable detail for presentation
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("error fetching data from provider: %s", e.Detail)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Detail)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// providerError is the provider's JSON error envelope.
type providerError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"moreInfo"`
}

// errorDetail extracts a presentable detail from an error response body.
// The second return is false when the body is not JSON.
func errorDetail(body []byte) (string, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return NoDetail, false
	}

	var pe providerError
	if err := json.Unmarshal(body, &pe); err == nil && pe.Message != "" {
		if pe.MoreInfo != "" {
			return fmt.Sprintf("%s (%s)", pe.Message, pe.MoreInfo), true
		}
		return pe.Message, true
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return NoDetail, false
	}
	return compact.String(), true
}
