// Package httputil builds the HTTP clients shared by outbound fetchers.
package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole request including body read. Provider
// endpoints answer in well under this; anything slower is treated as down.
const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the given request timeout, falling
// back to DefaultTimeout when zero or negative.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
