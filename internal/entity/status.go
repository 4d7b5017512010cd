package entity

import "net/http"

// successCodes are the only codes a valid link may carry. It is an explicit set,
// not the 2xx range.
var successCodes = map[int]struct{}{
	http.StatusOK:                   {},
	http.StatusCreated:              {},
	http.StatusAccepted:             {},
	http.StatusNonAuthoritativeInfo: {},
	http.StatusNoContent:            {},
	http.StatusResetContent:         {},
	http.StatusPartialContent:       {},
	http.StatusMultiStatus:          {},
}

// Status is the HTTP-like outcome of validating a link.
type Status struct {
	Code    int    `json:"statusCode"`
	Message string `json:"statusMessage"`
}

// NewStatus builds a status carrying the standard reason phrase for code.
func NewStatus(code int) Status {
	return Status{Code: code, Message: http.StatusText(code)}
}

// DefaultStatus is used wherever a status is unknown.
func DefaultStatus() Status {
	return NewStatus(http.StatusNotFound)
}

// IsValid reports whether the code is in the success set.
func (s Status) IsValid() bool {
	_, ok := successCodes[s.Code]
	return ok
}
