package main

import (
	"bytes"
	"strings"
	"testing"
)

// ─── envConfig ────────────────────────────────────────────────────────────────

func TestEnvConfig_Precedence(t *testing.T) {
	t.Setenv("GROKTIME_CONFIG", "")
	if got := envConfig(""); got != "groktime.yaml" {
		t.Errorf("default = %q, want groktime.yaml", got)
	}

	t.Setenv("GROKTIME_CONFIG", "/etc/groktime.yaml")
	if got := envConfig(""); got != "/etc/groktime.yaml" {
		t.Errorf("env = %q, want /etc/groktime.yaml", got)
	}
	if got := envConfig("local.yaml"); got != "local.yaml" {
		t.Errorf("flag = %q, want local.yaml", got)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "#", "PATTERN")
	tbl.AddRow("0", "%{WORD:proc}")
	tbl.AddRow("12") // short rows are padded
	tbl.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("rendered %d lines, want 6:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "┌") || !strings.HasPrefix(lines[5], "└") {
		t.Errorf("missing borders:\n%s", buf.String())
	}
	if !strings.Contains(lines[1], "PATTERN") || !strings.Contains(lines[3], "%{WORD:proc}") {
		t.Errorf("unexpected content:\n%s", buf.String())
	}
	// every row is the same width
	w := len([]rune(lines[1]))
	for i, l := range lines {
		if got := len([]rune(l)); got != w {
			t.Errorf("line %d width %d, want %d", i, got, w)
		}
	}
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf).Render()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// ─── truncate ─────────────────────────────────────────────────────────────────

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 8, "this is…"},
		{"héllo wörld", 5, "héll…"},
	}
	for _, tc := range tests {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestColorDisabled(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if got := red("x"); got != "x" {
		t.Errorf("red with NO_COLOR = %q, want plain", got)
	}
}
