package visualguide

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

func TestParseNormalizesTopics(t *testing.T) {
	got := Parse(`{"summary":"Cells","topics":[
		{"name":"Mitosis","study_method":"- draw it","time":"25","order":2,"resources":["a","b","c","d","e","f","g","h","i"]},
		"Cell wall",
		{"name":"","order":0},
		{"name":"Membranes","time":"soon"}
	]}`)
	if got.Summary != "Cells" || len(got.Topics) != 3 {
		t.Fatalf("guide: %+v", got)
	}
	// orders: Mitosis=2, "Cell wall"=2 (position), Membranes=4 (position)
	if got.Topics[0].Name != "Mitosis" || got.Topics[1].Name != "Cell wall" || got.Topics[2].Name != "Membranes" {
		t.Fatalf("order: %+v", got.Topics)
	}
	if got.Topics[0].Time == nil || *got.Topics[0].Time != 25 || len(got.Topics[0].Resources) != 8 {
		t.Fatalf("mitosis: %+v", got.Topics[0])
	}
	if got.Topics[2].Time != nil || got.Topics[2].Resources != nil {
		t.Fatalf("membranes: %+v", got.Topics[2])
	}
}

func TestParseCapsAtTwelve(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"topics":[`)
	for i := 0; i < 15; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"name":"t%d","order":%d}`, i, 15-i)
	}
	b.WriteString(`]}`)
	got := Parse(b.String())
	if len(got.Topics) != 12 || got.Topics[0].Name != "t11" {
		t.Fatalf("cap: len=%d first=%+v", len(got.Topics), got.Topics[0])
	}
}

func TestRunUsesText(t *testing.T) {
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	chat := toolstest.Reply(`{"summary":"s","topics":[]}`)
	svc := New(tools.Base{LLM: chat, Prompts: cat})
	req := tools.DocRequest{Method: "text", Text: "Plate tectonics"}
	if err := svc.Validate(&req); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := svc.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(chat.Requests[0].User, "Plate tectonics") {
		t.Fatalf("prompt: %q", chat.Requests[0].User)
	}
}
