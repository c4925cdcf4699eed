package lake

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	day := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)
	now := time.Date(2025, 3, 10, 7, 5, 9, 0, time.UTC)

	tests := []struct {
		name       string
		userID     string
		compressed bool
		pattern    string
	}{
		{"user named, compressed", "u1", true, `^raw/chat-bot/2025/03/09/u1_070509_[0-9a-f]{8}\.json\.gz$`},
		{"service named, plain", "", false, `^raw/chat-bot/2025/03/09/chat-bot_070509_[0-9a-f]{8}\.json$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := Key("chat-bot", day, tt.userID, tt.compressed, now)
			assert.Regexp(t, regexp.MustCompile(tt.pattern), key)
		})
	}
}

func TestKeyPartitionIsDeterministic(t *testing.T) {
	day := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	a := Key("journal-service", day, "u9", true, time.Now())
	b := Key("journal-service", day, "u9", true, time.Now().Add(time.Hour))

	prefix := "raw/journal-service/2025/01/31/u9_"
	assert.True(t, strings.HasPrefix(a, prefix))
	assert.True(t, strings.HasPrefix(b, prefix))
	assert.NotEqual(t, a, b, "uuid suffix differs")
}

func TestDayPrefixUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	local := time.Date(2025, 6, 1, 3, 0, 0, 0, loc)
	assert.Equal(t, "raw/ai-service/2025/05/31/", DayPrefix("ai-service", local))
}

func TestDayPrefixes(t *testing.T) {
	start := time.Date(2024, 2, 27, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC)

	got := DayPrefixes("chat-bot", start, end)
	assert.Equal(t, []string{
		"raw/chat-bot/2024/02/27/",
		"raw/chat-bot/2024/02/28/",
		"raw/chat-bot/2024/02/29/",
		"raw/chat-bot/2024/03/01/",
	}, got)

	assert.Nil(t, DayPrefixes("chat-bot", end, start))
	assert.Len(t, DayPrefixes("chat-bot", start, start), 1)
}

func TestDayBounds(t *testing.T) {
	t0 := time.Date(2025, 4, 2, 18, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), StartOfDay(t0))
	end := EndOfDay(t0)
	assert.Equal(t, 2, end.Day())
	assert.Equal(t, 3, end.Add(time.Nanosecond).Day())
}

func TestServiceFromKey(t *testing.T) {
	svc, ok := ServiceFromKey("raw/chat-bot/2025/01/01/x.json")
	require.True(t, ok)
	assert.Equal(t, "chat-bot", svc)

	_, ok = ServiceFromKey("processed/training-data/a.jsonl.gz")
	assert.False(t, ok)
	_, ok = ServiceFromKey("raw/")
	assert.False(t, ok)
}

func TestDayFromKey(t *testing.T) {
	day, ok := DayFromKey("raw/ai-service/2025/03/09/u1_070509_abcd1234.json")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), day)

	for _, key := range []string{"processed/x.jsonl.gz", "raw/ai-service/2025/03/", "raw/ai-service/2025/13/40/x.json"} {
		_, ok := DayFromKey(key)
		assert.False(t, ok, key)
	}
}
