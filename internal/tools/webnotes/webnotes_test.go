package webnotes

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

func TestParse(t *testing.T) {
	got := Parse("```json\n{\"title\":\"Cells\",\"summary\":\"Units of life\",\"key_points\":[\"a\",\"\",\"b\"],\"tags\":\"biology\"}\n```", "Page")
	if got.Title != "Cells" || got.Summary != "Units of life" {
		t.Fatalf("notes: %+v", got)
	}
	if len(got.KeyPoints) != 2 || len(got.Tags) != 1 || got.Tags[0] != "biology" {
		t.Fatalf("lists: %+v", got)
	}

	fallback := Parse("The page is about cells.", "Cell biology")
	if fallback.Title != "Cell biology" || fallback.Summary != "The page is about cells." {
		t.Fatalf("fallback: %+v", fallback)
	}
}

func TestSummarizeRendersPrompt(t *testing.T) {
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	chat := toolstest.Reply(`{"summary":"ok"}`)
	svc := New(tools.Base{LLM: chat, Prompts: cat})
	got, err := svc.Summarize(context.Background(), "https://example.com/a", "Example", "Body text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.Title != "Example" || got.Summary != "ok" {
		t.Fatalf("notes: %+v", got)
	}
	if u := chat.Requests[0].User; !strings.Contains(u, "URL: https://example.com/a") || !strings.Contains(u, "Body text") {
		t.Fatalf("prompt: %q", u)
	}

	empty, err := svc.Summarize(context.Background(), "u", "T", "  ")
	if err != nil || chat.Calls() != 1 || empty.Title != "T" {
		t.Fatalf("blank text should skip the model: notes=%+v calls=%d err=%v", empty, chat.Calls(), err)
	}
}
