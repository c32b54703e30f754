package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Defaults applied by NewClient.
//
// Retries cover GET, PUT and DELETE only.  POST endpoints (predict,
// normalize, vitals and diagnosis creation) write records server side and
// are sent exactly once whatever the retry settings.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultRetries      = 3
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 5 * time.Second
)

func defaultUserAgent() string {
	return fmt.Sprintf("sira-go-client/%s", Version)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc.  hc keeps its own Timeout and
// transport; WithTimeout only shapes the client NewClient builds itself.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every attempt made by the default HTTP client.  A
// prediction may wait on the server's embedding provider, so keep this above
// the server's embedding timeout.  d <= 0 keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times an idempotent request is repeated after a
// network error or a 5xx response.  0 disables retries; negative values are
// ignored.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retryMax = n
		}
	}
}

// WithBackoff sets the bounds of the exponential wait between retries.  max
// below min is raised to min; min <= 0 leaves both unchanged.  Each wait gets
// up to 25% jitter on top.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		if min <= 0 {
			return
		}
		if max < min {
			max = min
		}
		c.retryWaitMin, c.retryWaitMax = min, max
	}
}

// WithUserAgent puts the calling application's product token in front of the
// SDK's own, e.g. "triage-ui/2 sira-go-client/0.1.0".
func WithUserAgent(product string) Option {
	return func(c *Client) {
		if product = strings.TrimSpace(product); product != "" {
			c.userAgent = product + " " + defaultUserAgent()
		}
	}
}

// WithLogger receives request and retry diagnostics.  Bodies are never
// logged since they carry patient data.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}
