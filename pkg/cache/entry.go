package cache

import (
	"time"
)

// entryVersion is bumped whenever the encoded report format changes, so reports written by
// an older gqlpager are re-probed instead of misread.
const entryVersion = 1

// CacheEntry is a stored probe report.
type CacheEntry struct {
	// Version is the report format of Data.
	Version int `json:"v"`

	// Data is the encoded report.
	Data []byte `json:"data"`

	// ProbedAt is when the report was produced.
	ProbedAt time.Time `json:"probed_at"`

	// Expires is when the report should be probed again.
	Expires time.Time `json:"expires"`
}

// NewEntry wraps an encoded report in an entry valid for ttl.
func NewEntry(data []byte, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Version:  entryVersion,
		Data:     data,
		ProbedAt: now,
		Expires:  now.Add(ttl),
	}
}

// IsExpired reports whether the report is due for a new probe.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// IsCurrent reports whether the entry was written in the current report format.
func (e *CacheEntry) IsCurrent() bool {
	return e.Version == entryVersion
}

// TTL returns the time until expiration, or 0 once expired.
func (e *CacheEntry) TTL() time.Duration {
	return max(time.Until(e.Expires), 0)
}

// Age returns how long ago the report was produced.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.ProbedAt)
}
