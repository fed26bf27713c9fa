package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

func TestParseSortsByLeadingYear(t *testing.T) {
	got := Parse(`Here you go: {"timeline":[
		{"date":"ca. 1200","title":"Era"},
		{"date":"1945-05-08","title":"VE Day"},
		{"date":"476","title":"Fall of Rome"},
		{"date":"1066","title":""}
	]}`)
	if len(got.Timeline) != 3 {
		t.Fatalf("len: %d", len(got.Timeline))
	}
	if got.Timeline[0].Title != "Fall of Rome" || got.Timeline[1].Title != "VE Day" || got.Timeline[2].Title != "Era" {
		t.Fatalf("order: %+v", got.Timeline)
	}
}

func TestParseCapsAndTolerates(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"timeline":[`)
	for i := 0; i < 45; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"date":"%d","title":"e%d"}`, 2000-i, i)
	}
	b.WriteString(`]}`)
	if got := Parse(b.String()); len(got.Timeline) != 40 || got.Timeline[0].Date != "1956" {
		t.Fatalf("cap: len=%d first=%+v", len(got.Timeline), got.Timeline[0])
	}
	if got := Parse("not json"); got.Timeline == nil || len(got.Timeline) != 0 {
		t.Fatalf("garbage should give empty timeline")
	}
}

func TestValidate(t *testing.T) {
	svc := New(tools.Base{})
	cases := []struct {
		req tools.DocRequest
		ok  bool
	}{
		{tools.DocRequest{Category: "Roman Empire"}, true},
		{tools.DocRequest{Method: "category"}, false},
		{tools.DocRequest{Method: "TEXT", Text: " x "}, true},
		{tools.DocRequest{Method: "document"}, false},
		{tools.DocRequest{Method: "document", Filename: "a.pdf"}, true},
		{tools.DocRequest{Method: "poem"}, false},
	}
	for i, tc := range cases {
		err := svc.Validate(&tc.req)
		if tc.ok != (err == nil) {
			t.Fatalf("case %d: ok=%v err=%v", i, tc.ok, err)
		}
		if err != nil && !errors.Is(err, tools.ErrInvalidRequest) {
			t.Fatalf("case %d: want ErrInvalidRequest, got %v", i, err)
		}
	}
}

func TestRunSeedsCategory(t *testing.T) {
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	chat := toolstest.Reply(`{"timeline":[{"date":"27 BC","title":"Augustus"}]}`)
	svc := New(tools.Base{LLM: chat, Prompts: cat})
	res, err := svc.Run(context.Background(), tools.DocRequest{Method: "category", Category: "Rome"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(chat.Requests[0].User, "TOPIC: Rome") {
		t.Fatalf("prompt: %q", chat.Requests[0].User)
	}
	if r := res.(Result); len(r.Timeline) != 1 {
		t.Fatalf("result: %+v", r)
	}
}
