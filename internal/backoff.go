package internal

import (
	"math"
	"time"
)

// DefaultBackoffUnit is the time-unit the exponential backoff is measured in
const DefaultBackoffUnit = time.Second

// BackoffDelay returns the delay to wait after attempt has failed and before attempt+1 starts:
// 2^attempt units. A positive ceiling caps the result; zero leaves it unbounded.
func BackoffDelay(attempt int, unit, ceiling time.Duration) time.Duration {
	if attempt < 1 || unit <= 0 {
		return 0
	}

	delay := unit
	for i := 0; i < attempt; i++ {
		if delay > math.MaxInt64/2 {
			delay = time.Duration(math.MaxInt64)
			break
		}
		delay *= 2
	}

	if ceiling > 0 && delay > ceiling {
		return ceiling
	}
	return delay
}
