package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrCacheMiss is returned by cart caches holding nothing for a profile.
	ErrCacheMiss = errors.New("cache miss")
	// ErrNetwork wraps transport failures: refused, timed out or short-circuited requests.
	ErrNetwork = errors.New("network failure")
	// ErrAuthRequired means the API answered 401 or there is no access token.
	ErrAuthRequired = errors.New("authentication required")
)

// HTTPError is a non-2xx answer from the storefront API.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// Is lets errors.Is(err, ErrAuthRequired) match 401 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrAuthRequired && e.Status == http.StatusUnauthorized
}

// LoginError carries the message of a rejected login.
type LoginError struct {
	Message string
}

func (e *LoginError) Error() string {
	if e.Message == "" {
		return "login failed"
	}
	return "login failed: " + e.Message
}
