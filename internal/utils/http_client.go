package utils

import (
	"github.com/go-resty/resty/v2"
)

// HTTPClient wraps [resty.Client] so callers get all of its methods plus
// any application-specific helpers added here.
//
// Example usage:
//
//	client := utils.NewHTTPClient()
//	resp, err := client.R().Get("http://localhost:8080/api/sync/status")
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient returns an independent client with its own connection pool.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{Client: resty.New()}
}
