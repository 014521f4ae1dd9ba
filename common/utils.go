package common

import (
	"strconv"
	"strings"
	"time"
)

const (
	UTC_STRING_MS_FORMAT = "2006-01-02 15:04:05.999999"
	WATERMARK_FORMAT     = "2006-01-02T15:04:05.000000Z"
)

func IntToString(i int) string {
	return strconv.Itoa(i)
}

func Int64ToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

func IsLocalHost(host string) bool {
	return strings.HasPrefix(host, "127.0.0.1") || strings.HasPrefix(host, "localhost")
}

func TimeToUtcStringMs(t time.Time) string {
	return t.UTC().Format(UTC_STRING_MS_FORMAT)
}

// Accepts both "2006-01-02 15:04:05.999999" and RFC 3339 values (what max() returns as VARCHAR differs per engine)
func StringMsToUtcTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(UTC_STRING_MS_FORMAT, s)
	if err == nil {
		return t.UTC(), nil
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999 MST", "2006-01-02 15:04:05.999999Z07:00", "2006-01-02 15:04:05.999999 -07:00"} {
		if t, parseErr := time.Parse(layout, s); parseErr == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, err
}

// 2024-05-01T10:00:00.123456Z, the format the API expects for "after" and "before"
func TimeToWatermark(t time.Time) string {
	return t.UTC().Format(WATERMARK_FORMAT)
}
