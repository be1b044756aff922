package tool

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

var DefaultTimeout = 30 * time.Second

// NewHTTPClient creates an HTTP client with a cookie jar. Auth tokens live in
// server-managed cookies, so the jar is the whole credential store on this side.
func NewHTTPClient() *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New with nil options cannot fail today; keep the fallback anyway.
		DefaultLogger.Errorf("Failed to create cookie jar: %v", err)
		jar = nil
	}
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	return &http.Client{
		Jar:       jar,
		Transport: transport,
	}
}
