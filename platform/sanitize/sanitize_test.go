package sanitize

import "testing"

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"<b>bold</b> text", "bold text"},
		{"<script>alert('x')</script>hello", "alert('x')hello"},
		{"&lt;img src=x&gt;after", "after"},
		{"  spaced  ", "spaced"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := StripHTML(tc.input); got != tc.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("nil input should stay nil")
	}

	in := "<i>note</i>"
	out := TextPtr(&in)
	if out == nil || *out != "note" {
		t.Fatalf("expected stripped pointer value, got %v", out)
	}
}
