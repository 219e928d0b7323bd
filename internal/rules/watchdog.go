package rules

import (
	"time"

	"github.com/hglynn/labclimate/internal/climate"
)

// IsStale reports whether a reading is too old to act on. A missing reading
// (present=false) is always stale. The timeout is a data-age check, not an
// I/O timeout.
func IsStale(r climate.Reading, present bool, now time.Time, timeout time.Duration) bool {
	if !present {
		return true
	}
	return now.Sub(r.ObservedAt) > timeout
}
