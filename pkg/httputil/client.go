// Package httputil provides the shared HTTP client construction and URL
// rewriting used by the metadata client and the execution backend's
// artifact fetch.
package httputil

import (
	"net/http"
	"time"
)

// NewClient creates an HTTP client with a fixed timeout. The returned
// client is safe for concurrent use by multiple goroutines. A new client
// is returned on every call; clients are not pooled.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
