package summarizer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

func TestTOC(t *testing.T) {
	got := TOC([]string{"short", strings.Repeat("é", 40)})
	if got[0] != "Section 1: short..." {
		t.Fatalf("first: %q", got[0])
	}
	if got[1] != "Section 2: "+strings.Repeat("é", 30)+"..." {
		t.Fatalf("second: %q", got[1])
	}
}

func TestAnalyzeAndResults(t *testing.T) {
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	chat := toolstest.Reply("A concise summary.")
	svc := New(tools.Base{LLM: chat, Prompts: cat})
	res, err := svc.AnalyzePage(context.Background(), tools.PageInput{Number: 1, Text: "long text"})
	if err != nil {
		t.Fatalf("AnalyzePage: %v", err)
	}
	if req := chat.Requests[0]; req.MaxTokens != 300 || req.Temperature != 0.5 {
		t.Fatalf("limits: %+v", req)
	}
	b, _ := json.Marshal(res)
	out, err := svc.Results(context.Background(), "f", []tools.Page{{Number: 1, Text: "long text", Result: b}}, tools.Options{})
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if sums := out["summary"].([]string); sums[0] != "A concise summary." {
		t.Fatalf("summary: %v", sums)
	}
}
