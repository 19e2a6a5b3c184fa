package ledger

import (
	"fmt"
	"time"
)

// Window identifies a usage accounting window.
type Window string

const (
	// WindowHour is the current UTC calendar hour.
	WindowHour Window = "hour"

	// WindowDay is the current UTC calendar date.
	WindowDay Window = "day"
)

// Bucket is a point-in-time view of one usage window.
type Bucket struct {
	// Key is the bucket key this view was read from.
	Key string

	// Requests is the number of requests recorded in the window.
	Requests int64

	// Tokens is the number of tokens recorded in the window.
	Tokens int64

	// CostUSD is the cost in USD recorded in the window.
	CostUSD float64
}

// BucketKey returns the storage key for a window at time t.
// Keys are derived from the UTC wall clock so that every process sharing
// a backing store agrees on the current bucket.
func BucketKey(w Window, t time.Time) string {
	switch w {
	case WindowHour:
		return "hour:" + t.UTC().Format("2006-01-02T15")
	case WindowDay:
		return "day:" + t.UTC().Format("2006-01-02")
	default:
		return fmt.Sprintf("%s:%d", w, t.UTC().Unix())
	}
}

// NextRollover returns when the window's current bucket key changes.
func NextRollover(w Window, t time.Time) time.Time {
	u := t.UTC()
	switch w {
	case WindowHour:
		return u.Truncate(time.Hour).Add(time.Hour)
	case WindowDay:
		year, month, day := u.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	default:
		return u
	}
}
