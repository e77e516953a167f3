package remote

import "fmt"

// NetworkError indicates the service could not be reached or the transfer
// broke off (connection refused, DNS, timeout, cancelled context).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: service unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Detail carries the service's "detail"
// field when the body had one.
type HTTPError struct {
	Op         string
	StatusCode int
	Detail     string
	RequestID  string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// BadRequestError indicates a 400 response, e.g. an unsupported file or no
// cleaned data available yet.
type BadRequestError struct{ *HTTPError }

func (e *BadRequestError) Error() string { return "bad request: " + e.HTTPError.Error() }

func (e *BadRequestError) Unwrap() error { return e.HTTPError }

// NotFoundError indicates the service no longer knows the file id.
type NotFoundError struct{ *HTTPError }

func (e *NotFoundError) Error() string { return "not found: " + e.HTTPError.Error() }

func (e *NotFoundError) Unwrap() error { return e.HTTPError }

// ServerError indicates a 5xx response.
type ServerError struct{ *HTTPError }

func (e *ServerError) Error() string { return "server error: " + e.HTTPError.Error() }

func (e *ServerError) Unwrap() error { return e.HTTPError }

func classifyHTTPError(he *HTTPError) error {
	switch {
	case he.StatusCode == 400:
		return &BadRequestError{HTTPError: he}
	case he.StatusCode == 404:
		return &NotFoundError{HTTPError: he}
	case he.StatusCode >= 500 && he.StatusCode <= 599:
		return &ServerError{HTTPError: he}
	default:
		return he
	}
}
