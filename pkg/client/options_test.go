package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("http://localhost:8000")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, DefaultRetries, c.retryMax)
	assert.Equal(t, DefaultRetryWaitMin, c.retryWaitMin)
	assert.Equal(t, DefaultRetryWaitMax, c.retryWaitMax)
	assert.Equal(t, "sira-go-client/"+Version, c.userAgent)
}

func TestWithHTTPClient_KeepsItsOwnTimeout(t *testing.T) {
	custom := &http.Client{Timeout: 60 * time.Second}
	c, err := NewClient("http://localhost:8000", WithTimeout(5*time.Second), WithHTTPClient(custom))
	require.NoError(t, err)
	assert.Same(t, custom, c.httpClient)
	assert.Equal(t, 60*time.Second, custom.Timeout)

	c, err = NewClient("http://localhost:8000", WithHTTPClient(nil))
	require.NoError(t, err)
	assert.NotNil(t, c.httpClient)
}

func TestWithTimeout(t *testing.T) {
	c, err := NewClient("http://localhost:8000", WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)

	c, err = NewClient("http://localhost:8000", WithTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestWithLogger(t *testing.T) {
	logger := &testLogger{}
	c := &Client{}
	WithLogger(logger)(c)
	assert.Same(t, logger, c.logger)

	WithLogger(nil)(c)
	assert.Same(t, logger, c.logger)
}

func TestWithRetries(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"positive value", 5, 5},
		{"zero disables", 0, 0},
		{"negative value ignored", -1, DefaultRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryMax: DefaultRetries}
			WithRetries(tt.input)(c)
			assert.Equal(t, tt.expected, c.retryMax)
		})
	}
}

func TestWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		min       time.Duration
		max       time.Duration
		expectMin time.Duration
		expectMax time.Duration
	}{
		{"valid range", time.Second, 5 * time.Second, time.Second, 5 * time.Second},
		{"equal values", 2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second},
		{"zero min keeps defaults", 0, 5 * time.Second, DefaultRetryWaitMin, DefaultRetryWaitMax},
		{"max below min raised", 5 * time.Second, 2 * time.Second, 5 * time.Second, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryWaitMin: DefaultRetryWaitMin, retryWaitMax: DefaultRetryWaitMax}
			WithBackoff(tt.min, tt.max)(c)
			assert.Equal(t, tt.expectMin, c.retryWaitMin)
			assert.Equal(t, tt.expectMax, c.retryWaitMax)
		})
	}
}

func TestWithUserAgent(t *testing.T) {
	c := &Client{userAgent: defaultUserAgent()}
	WithUserAgent("  ")(c)
	assert.Equal(t, defaultUserAgent(), c.userAgent)

	WithUserAgent("triage-ui/2")(c)
	assert.Equal(t, "triage-ui/2 sira-go-client/"+Version, c.userAgent)
}
