package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+34 612 345 678", "+34612345678"},
		{"612 345 678", "+34612345678"},
		{"+44 20 7946 0958", "+442079460958"},
		{"  +34612345678  ", "+34612345678"},
		{"", ""},
		{"   ", ""},
		{"not a number", "not a number"},
	}

	for _, tc := range tests {
		if got := NormalizeE164(tc.input); got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
