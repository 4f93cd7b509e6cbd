// Package fetcher downloads source documents over HTTP and FTP.
package fetcher

import "context"

// Response is one fully-read fetch result.
type Response struct {
	Body     []byte
	MimeType string
}

// Fetcher downloads a URL and returns the full response body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}
