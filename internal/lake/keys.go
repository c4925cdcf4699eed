package lake

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawPrefix is the root of every ingested partition.
const RawPrefix = "raw/"

// HealthCheckPrefix holds the synthetic objects written by health checks.
const HealthCheckPrefix = "health-check/"

// Key builds raw/<service>/<yyyy>/<mm>/<dd>/<name>_<HHmmss>_<uuid8>.json[.gz].
// The partition comes from day; the time suffix comes from now. name is
// userID when set, otherwise the service.
func Key(service string, day time.Time, userID string, compressed bool, now time.Time) string {
	name := userID
	if name == "" {
		name = service
	}
	ext := ".json"
	if compressed {
		ext += ".gz"
	}
	return fmt.Sprintf("%s%s_%s_%s%s", DayPrefix(service, day), name, now.UTC().Format("150405"), shortID(), ext)
}

// DayPrefix is the partition prefix for service on the UTC calendar day of t.
func DayPrefix(service string, t time.Time) string {
	return RawPrefix + service + "/" + t.UTC().Format("2006/01/02") + "/"
}

// DayPrefixes lists the day prefixes covering [start, end], oldest first.
// An inverted range yields nil.
func DayPrefixes(service string, start, end time.Time) []string {
	day := StartOfDay(start)
	end = end.UTC()
	var out []string
	for !day.After(end) {
		out = append(out, DayPrefix(service, day))
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last representable instant of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ServiceFromKey returns the service segment of a raw key.
func ServiceFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, RawPrefix)
	if !ok {
		return "", false
	}
	service, _, ok := strings.Cut(rest, "/")
	return service, ok && service != ""
}

// DayFromKey parses the partition day of a raw key.
func DayFromKey(key string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, RawPrefix)
	if !ok {
		return time.Time{}, false
	}
	parts := strings.SplitN(rest, "/", 5)
	if len(parts) < 5 {
		return time.Time{}, false
	}
	day, err := time.Parse("2006/01/02", strings.Join(parts[1:4], "/"))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// IsCompressed reports whether key names a gzip object.
func IsCompressed(key string) bool {
	return strings.HasSuffix(key, ".gz")
}

func shortID() string {
	return uuid.NewString()[:8]
}
