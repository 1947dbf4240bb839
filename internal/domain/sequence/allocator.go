// Package sequence issues date-scoped monotonically increasing counters
// used to build human-readable request, batch and filing numbers.
package sequence

import (
	"context"
	"fmt"
	"time"
)

// Allocator hands out the next counter value for a date key. Two concurrent
// calls for the same key must never return the same value.
type Allocator interface {
	Next(ctx context.Context, dateKey string) (int, error)
}

// DateKey formats t as the YYYYMMDD key used to scope counters.
func DateKey(t time.Time) string {
	return t.Format("20060102")
}

// FormatNumber builds a human-readable identifier such as CN20250101-0001.
func FormatNumber(prefix, dateKey string, seq int) string {
	return fmt.Sprintf("%s%s-%04d", prefix, dateKey, seq)
}
