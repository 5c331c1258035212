package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"carriage returns", "a\r\nb\rc", "a\nb\nc"},
		{"trailing whitespace before newline", "a  \t\nb", "a\nb"},
		{"collapse newline runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"collapse horizontal whitespace", "a \t  b", "a b"},
		{"nonbreaking space", "a\u00A0\u00A0b", "a b"},
		{"trim", "  hello  ", "hello"},
		{"whitespace only", " \t \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_deterministic(t *testing.T) {
	in := "Title\r\n\r\n\r\nBody  text \t here.\r"
	first := Normalize(in)
	if first != Normalize(in) {
		t.Error("Normalize should be deterministic")
	}
	if Normalize(first) != first {
		t.Error("Normalize should be idempotent on its own output")
	}
}
