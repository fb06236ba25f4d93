package proxy

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Kind classifies a request failure.
type Kind int

const (
	KindInternal            Kind = iota // unexpected failure, 500
	KindClientInput                     // missing or malformed url parameter, 400
	KindExtraction                      // hosting page yielded no manifest, 502
	KindUpstreamUnreachable             // network failure talking to upstream, 502
	KindUpstreamRejected                // upstream answered with a non-2xx status
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindExtraction:
		return "extraction"
	case KindUpstreamUnreachable:
		return "unreachable"
	case KindUpstreamRejected:
		return "rejected"
	default:
		return "internal"
	}
}

// Messages returned to clients.
const (
	MsgMissingURL       = "Missing url parameter"
	MsgInvalidURL       = "Invalid url format"
	MsgUnsupportedPage  = "Provided URL does not appear to be a supported video page"
	MsgExtractionFailed = "Failed to extract HLS manifest from page. The video might not be a live stream, the stream may have ended, or the page markup has changed."
	MsgForbidden        = "Upstream URL is not allowed"
	MsgInternal         = "Internal server error"
)

// Error is the error type every proxy operation returns. Status is the HTTP
// status the caller should answer with and Message is safe to show clients.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status for err. Errors that are not *Error map to 500.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) && pe.Status != 0 {
		return pe.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return MsgInternal
}

// KindOf returns the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func clientInputError(msg string, err error) *Error {
	return &Error{Kind: KindClientInput, Status: http.StatusBadRequest, Message: msg, Err: err}
}

func forbiddenError() *Error {
	return &Error{Kind: KindClientInput, Status: http.StatusForbidden, Message: MsgForbidden}
}

func extractionError() *Error {
	return &Error{Kind: KindExtraction, Status: http.StatusBadGateway, Message: MsgExtractionFailed}
}

func unreachableError(what string, err error) *Error {
	return &Error{
		Kind:    KindUpstreamUnreachable,
		Status:  http.StatusBadGateway,
		Message: "Failed to fetch " + what + ": upstream unreachable",
		Err:     err,
	}
}

// rejectedError mirrors an upstream error status. Codes below 400 cannot carry
// an error body and are reported as 502.
func rejectedError(what string, resp *http.Response) *Error {
	status := resp.StatusCode
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	return &Error{
		Kind:    KindUpstreamRejected,
		Status:  status,
		Message: "Failed to fetch " + what + ": " + statusText(resp),
	}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// statusText returns the reason phrase upstream sent, e.g. "Not Found".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	if text == "" {
		text = "status " + strconv.Itoa(resp.StatusCode)
	}
	return text
}
