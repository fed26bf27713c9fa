package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeJSONVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bare", `[{"title":"a"}]`},
		{"fenced", "```json\n[{\"title\":\"a\"}]\n```"},
		{"prose", `Here you go: [{"title":"a"}] hope it helps`},
	}
	for _, tc := range cases {
		var out []map[string]string
		if err := DecodeJSON(tc.raw, &out); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(out) != 1 || out[0]["title"] != "a" {
			t.Fatalf("%s: got %v", tc.name, out)
		}
	}
}

func TestDecodeJSONPrefersObjectWhenItComesFirst(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON(`result: {"tags":["x","y"]} done`, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	tags, _ := out["tags"].([]any)
	if len(tags) != 2 {
		t.Fatalf("tags: got %v", out)
	}
}

func TestDecodeJSONRejectsPlainText(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON("1990: Wall falls", &out); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("want ErrNoJSON, got %v", err)
	}
	if err := DecodeJSON("   ", &out); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("empty: want ErrNoJSON, got %v", err)
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	if got := Truncate("  héllo wörld  ", 5); got != "héllo" {
		t.Fatalf("Truncate: got %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate no-op: got %q", got)
	}
	long := strings.Repeat("é", MaxPromptChars+5)
	if got := []rune(Clip(long)); len(got) != MaxPromptChars {
		t.Fatalf("Clip: want %d runes got %d", MaxPromptChars, len(got))
	}
}
