package common

import (
	"testing"
	"time"
)

func TestTimeToWatermark(t *testing.T) {
	t.Run("Formats with microseconds and a Z suffix", func(t *testing.T) {
		timestamp := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)

		watermark := TimeToWatermark(timestamp)

		if watermark != "2024-05-01T10:00:00.123456Z" {
			t.Errorf("Expected 2024-05-01T10:00:00.123456Z, got %s", watermark)
		}
	})

	t.Run("Converts to UTC and pads zero microseconds", func(t *testing.T) {
		timestamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

		watermark := TimeToWatermark(timestamp)

		if watermark != "2024-05-01T10:00:00.000000Z" {
			t.Errorf("Expected 2024-05-01T10:00:00.000000Z, got %s", watermark)
		}
	})
}

func TestStringMsToUtcTime(t *testing.T) {
	expected := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)

	for _, value := range []string{
		"2024-05-01 10:00:00.123456",
		"2024-05-01T10:00:00.123456Z",
		"2024-05-01 10:00:00.123456 UTC",
		"2024-05-01 10:00:00.123456+00:00",
		"2024-05-01T12:00:00.123456+02:00",
	} {
		t.Run("Parses "+value, func(t *testing.T) {
			parsed, err := StringMsToUtcTime(value)

			if err != nil {
				t.Fatalf("Failed to parse %s: %v", value, err)
			}
			if !parsed.Equal(expected) {
				t.Errorf("Expected %v, got %v", expected, parsed)
			}
			if parsed.Location() != time.UTC {
				t.Errorf("Expected UTC, got %v", parsed.Location())
			}
		})
	}

	t.Run("Returns an error for an invalid value", func(t *testing.T) {
		_, err := StringMsToUtcTime("yesterday")

		if err == nil {
			t.Error("Expected an error")
		}
	})
}

func TestIsLocalHost(t *testing.T) {
	t.Run("Detects local hosts", func(t *testing.T) {
		if !IsLocalHost("localhost:9000") || !IsLocalHost("127.0.0.1:9000") {
			t.Error("Expected local hosts to be detected")
		}
		if IsLocalHost("s3.amazonaws.com") {
			t.Error("Expected s3.amazonaws.com not to be a local host")
		}
	})
}

func TestSet(t *testing.T) {
	t.Run("Adds values and reports membership", func(t *testing.T) {
		set := NewSet[string]().AddAll([]string{"flows", "groups"}).Add("flows")

		if !set.Contains("flows") || !set.Contains("groups") {
			t.Error("Expected the set to contain flows and groups")
		}
		if set.Contains("contacts_raw") {
			t.Error("Expected the set not to contain contacts_raw")
		}
		if len(set.Values()) != 2 {
			t.Errorf("Expected 2 values, got %d", len(set.Values()))
		}
	})

	t.Run("Sorts string values", func(t *testing.T) {
		sorted := SortedKeys(NewSet[string]().AddAll([]string{"groups", "flows", "contacts_raw"}))

		if sorted[0] != "contacts_raw" || sorted[1] != "flows" || sorted[2] != "groups" {
			t.Errorf("Expected sorted values, got %v", sorted)
		}
	})

	t.Run("Sorts map keys", func(t *testing.T) {
		sorted := SortedKeys(map[string]float64{"rapidpro_syncer.records.loaded": 1, "rapidpro_syncer.load.errors": 2})

		if len(sorted) != 2 || sorted[0] != "rapidpro_syncer.load.errors" || sorted[1] != "rapidpro_syncer.records.loaded" {
			t.Errorf("Expected sorted keys, got %v", sorted)
		}
	})
}
