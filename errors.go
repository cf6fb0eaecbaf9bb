package forge

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP is a provider's HTTP-layer failure. RetryAfter carries the
// provider's Retry-After hint (0 if the response didn't send one); WithRetry
// uses it to floor its backoff delay.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses an HTTP Retry-After header value, which is either a
// delay in seconds ("120") or an HTTP-date (RFC 1123). Returns 0 if header is
// empty or unparseable. Providers use this to populate ErrHTTP.RetryAfter.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	t, err := http.ParseTime(header)
	if err != nil {
		t, err = time.Parse(time.RFC1123, header)
	}
	if err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
