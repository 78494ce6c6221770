package time

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxTime = 292277024627-12-06 15:30:07.999999999 +0000 UTC
var MaxTime = time.Unix(1<<63-62135596801, 999999999)

func UnixNano(t time.Time) int64 {
	v := int64(0)
	if !t.IsZero() {
		v = t.UnixNano()
	}
	return v
}

func Unix(sec int64, nsec int64) time.Time {
	if sec != 0 || nsec != 0 {
		return time.Unix(sec, nsec)
	}
	return time.Time{}
}

// FormatVersion renders t as the "<seconds>:<nanoseconds>" timestamp used for
// resource versions and paging cursors.
func FormatVersion(t time.Time) string {
	if t.IsZero() {
		return "0:0"
	}
	return strconv.FormatInt(t.Unix(), 10) + ":" + strconv.Itoa(t.Nanosecond())
}

// ParseVersion parses the "<seconds>:<nanoseconds>" timestamp.
func ParseVersion(v string) (time.Time, error) {
	secStr, nsecStr, ok := strings.Cut(v, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: missing separator", v)
	}
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil || sec < 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: seconds", v)
	}
	nsec, err := strconv.ParseInt(nsecStr, 10, 64)
	if err != nil || nsec < 0 || nsec >= int64(time.Second) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: nanoseconds", v)
	}
	return Unix(sec, nsec), nil
}
