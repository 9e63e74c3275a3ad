package archive

import (
	"os"
	"strconv"
	"time"
)

// Now returns the current time in UTC, honoring SOURCE_DATE_EPOCH if set.
// FromFS does not use it: files packed from a directory keep their own
// modification times.
func Now() time.Time {
	if epoch := os.Getenv("SOURCE_DATE_EPOCH"); epoch != "" {
		if ts, err := strconv.ParseInt(epoch, 10, 64); err == nil {
			return time.Unix(ts, 0).UTC()
		}
	}
	return time.Now().UTC()
}
