// Package types holds the wire envelopes every API response uses.
package types

// SuccessEnvelope wraps a payload, e.g. a build detail or sync result.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public rendition of a pkg/errors code. Details carry
// structured context such as shortage lists on a 409.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
