// Package apierror maps transport and HTTP failures onto a small set of
// user-facing categories and owns the navigation side effects that some
// categories carry.
package apierror

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Category is a user-facing classification of a failed request.
type Category string

const (
	NetworkUnreachable Category = "network_unreachable"
	BadRequest         Category = "bad_request"
	Unauthenticated    Category = "unauthenticated"
	Forbidden          Category = "forbidden"
	NotFound           Category = "not_found"
	Conflict           Category = "conflict"
	ValidationFailed   Category = "validation_failed"
	RateLimited        Category = "rate_limited"
	ServerError        Category = "server_error"
	Unknown            Category = "unknown"
)

// Error is a normalized request failure. StatusCode 0 means the server was
// never reached.
type Error struct {
	StatusCode int
	Category   Category
	Message    string

	// handled marks that the navigation side effect for this failure has
	// fired; Normalize will not fire it again.
	handled bool
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Category, e.StatusCode, e.Message)
}

// CategoryForStatus maps an HTTP status code to its category.
func CategoryForStatus(status int) Category {
	switch {
	case status == 0:
		return NetworkUnreachable
	case status == http.StatusBadRequest:
		return BadRequest
	case status == http.StatusUnauthorized:
		return Unauthenticated
	case status == http.StatusForbidden:
		return Forbidden
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusConflict:
		return Conflict
	case status == http.StatusUnprocessableEntity:
		return ValidationFailed
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status >= 500:
		return ServerError
	default:
		return Unknown
	}
}

func defaultMessage(category Category) string {
	switch category {
	case NetworkUnreachable:
		return "Network error - please check your connection"
	case BadRequest:
		return "Bad request - invalid data provided"
	case Unauthenticated:
		return "Authentication required"
	case Forbidden:
		return "Access denied - you do not have permission to access this resource"
	case NotFound:
		return "Resource not found"
	case Conflict:
		return "Conflict - resource already exists"
	case ValidationFailed:
		return "Validation error - please check your input"
	case RateLimited:
		return "Too many requests - please try again later"
	case ServerError:
		return "Server error - please try again later"
	default:
		return "An unexpected error occurred"
	}
}

// FromResponse builds an Error from a non-2xx response, preferring the
// server's own error message when the body carries one. The body is consumed.
func FromResponse(resp *http.Response) *Error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Category:   CategoryForStatus(resp.StatusCode),
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			e.Message = payload.Error
		} else if payload.Message != "" {
			e.Message = payload.Message
		}
	}
	if e.Message == "" {
		e.Message = defaultMessage(e.Category)
	}

	return e
}

// FromTransport wraps a transport-level failure (server never reached).
func FromTransport(err error) *Error {
	return &Error{
		Category: NetworkUnreachable,
		Message:  defaultMessage(NetworkUnreachable),
	}
}

// Normalizer turns raw request errors into categorized ones and fires the
// navigation side effects attached to some categories.
type Normalizer struct {
	navigate          func(route string)
	unauthorizedRoute string
}

// NewNormalizer builds a Normalizer. navigate receives the target route for
// redirect-carrying categories; unauthorizedRoute is where Forbidden lands.
func NewNormalizer(navigate func(route string), unauthorizedRoute string) *Normalizer {
	return &Normalizer{
		navigate:          navigate,
		unauthorizedRoute: unauthorizedRoute,
	}
}

// Normalize categorizes err and fires its side effect at most once per
// originating failure, no matter how many layers pass the same error through.
//
// 401 carries no side effect here: recovery (refresh/retry) and the
// logout-on-terminal-failure redirect belong to the request transport, and
// firing a second redirect for the same failure is exactly what this layer
// must not do.
func (n *Normalizer) Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	e, ok := err.(*Error)
	if !ok {
		e = FromTransport(err)
	}

	if e.handled {
		return e
	}
	e.handled = true

	if e.Category == Forbidden && n.navigate != nil {
		n.navigate(n.unauthorizedRoute)
	}

	return e
}
