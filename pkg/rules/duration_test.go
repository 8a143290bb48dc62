package rules

import (
	"testing"
	"time"
)

func TestParseISODuration_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"PT1H", time.Hour},
		{"PT30M", 30 * time.Minute},
		{"PT90S", 90 * time.Second},
		{"PT1H30M", 90 * time.Minute},
		{"P1D", 24 * time.Hour},
		{"P2DT12H", 60 * time.Hour},
		{"P1W", 7 * 24 * time.Hour},
		{"PT0.5H", 30 * time.Minute},
		{"p1d", 24 * time.Hour},
		{" PT15M ", 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseISODuration(tt.input)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseISODuration_Invalid(t *testing.T) {
	tests := []string{
		"",
		"P",
		"PT",
		"1H",
		"P1Y", // calendar years have no fixed length
		"P1M", // calendar months have no fixed length
		"PT1X",
		"P1H", // hours require the T separator
		"PTT1H",
		"R3/PT1H", // repeating intervals are not durations
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := parseISODuration(input); err == nil {
				t.Errorf("Expected error for %q", input)
			}
		})
	}
}

func TestParseISODuration_MinutesVsMonths(t *testing.T) {
	got, err := parseISODuration("PT3M")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != 3*time.Minute {
		t.Errorf("Expected 3 minutes after the T separator, got %s", got)
	}
	if _, err := parseISODuration("P3M"); err == nil {
		t.Error("Expected months before the T separator to be rejected")
	}
}
