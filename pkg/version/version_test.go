package version

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		name              string
		tag, commit, date string
		want              string
	}{
		{"dev", "", unknown, "", "dev"},
		{"dev full", "", unknown, unknown, "dev"},
		{"commit", "", "abc1234", "", "abc1234"},
		{"commit full", "", "abc1234", "2026-01-01", "abc1234 built 2026-01-01"},
		{"tag", "v0.3.0", "abc1234", "", "v0.3.0"},
		{"tag full", "v0.3.0", "abc1234", "2026-01-01", "v0.3.0 (abc1234) built 2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := format(tt.tag, tt.commit, tt.date); got != tt.want {
				t.Errorf("format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringNotEmpty(t *testing.T) {
	if String() == "" || Full() == "" {
		t.Fatal("version strings must not be empty")
	}
}
