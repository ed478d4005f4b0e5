package ticketid

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		ordinal int
		want    string
	}{
		{1, "ASTU-2025-001"},
		{42, "ASTU-2025-042"},
		{999, "ASTU-2025-999"},
		{1000, "ASTU-2025-1000"},
		{123456, "ASTU-2025-123456"},
	}
	re := Pattern("ASTU")
	for _, tt := range tests {
		got := Format("ASTU", 2025, tt.ordinal)
		if got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.ordinal, got, tt.want)
		}
		if !re.MatchString(got) {
			t.Errorf("%q does not match %s", got, re)
		}
	}
}

func TestPatternRejects(t *testing.T) {
	re := Pattern("ASTU")
	for _, id := range []string{"ASTU-2025-01", "ASTU-25-001", "XYZ-2025-001", "ASTU-2025-001x", "ASTU2025001"} {
		if re.MatchString(id) {
			t.Errorf("pattern unexpectedly matched %q", id)
		}
	}
}

func TestParse(t *testing.T) {
	prefix, year, ordinal, err := Parse("ASTU-2024-017")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if prefix != "ASTU" || year != 2024 || ordinal != 17 {
		t.Errorf("Parse = %q %d %d", prefix, year, ordinal)
	}
	if YearPrefix("ASTU", 2024) != "ASTU-2024-" {
		t.Errorf("YearPrefix = %q", YearPrefix("ASTU", 2024))
	}
	for _, bad := range []string{"", "ASTU-2024", "ASTU-20x4-001", "ASTU-2024-000", "-2024-001"} {
		if _, _, _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) expected error", bad)
		}
	}
}
