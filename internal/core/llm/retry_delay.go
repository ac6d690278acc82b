package llm

import (
	"regexp"
	"strconv"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
)

var retryDelayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`retry_delay\s*\{\s*seconds:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)s"`),
	regexp.MustCompile(`(?i)retry-after:\s*(\d+(?:\.\d+)?)`),
}

// RetryDelay returns the server-suggested base delay for err, or
// DefaultRetryDelay when none can be found.
func RetryDelay(err error) time.Duration {
	if d, ok := ParseRetryDelay(err); ok {
		return d
	}

	return DefaultRetryDelay
}

// ParseRetryDelay looks for a retry hint on err: structured RetryInfo details
// first, then well-known spellings in the error text.
func ParseRetryDelay(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	if ae, ok := apierror.FromError(err); ok && ae != nil {
		if info := ae.Details().RetryInfo; info != nil {
			if d := info.GetRetryDelay().AsDuration(); d > 0 {
				return d, true
			}
		}
	}

	msg := err.Error()

	for _, re := range retryDelayPatterns {
		m := re.FindStringSubmatch(msg)
		if len(m) < 2 {
			continue
		}

		seconds, perr := strconv.ParseFloat(m[1], 64)
		if perr != nil || seconds <= 0 {
			continue
		}

		return time.Duration(seconds * float64(time.Second)), true
	}

	return 0, false
}
