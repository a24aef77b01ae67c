package geoapify

import "time"

const maxBackoff = time.Minute

// backoff returns base * 2^retry, capped at [maxBackoff].
func backoff(base time.Duration, retry int) time.Duration {
	d := min(base, maxBackoff)
	for range retry {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
