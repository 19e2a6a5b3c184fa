// Package retention removes expired usage buckets from storage on a
// cron schedule.
//
// Bucket records become garbage once their hour or day has passed; the
// governor never reads them again because keys are derived from the
// current wall clock. The sweeper deletes records whose last update is
// older than the configured maximum age. Backends with native expiry
// (redis TTLs) make each sweep a no-op.
package retention
