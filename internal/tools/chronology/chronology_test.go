package chronology

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

func strp(s string) *string { return &s }

func TestParseEventsNormalizesDates(t *testing.T) {
	got := ParseEvents(`[{"date":"1914-07","title":"War begins","desc":"d"},{"date":"July 1914","title":"Bad date"},"skip"]`)
	if len(got) != 2 {
		t.Fatalf("len: want=2 got=%d", len(got))
	}
	if got[0].Date == nil || *got[0].Date != "1914-07" {
		t.Fatalf("valid date dropped: %+v", got[0])
	}
	if got[1].Date != nil {
		t.Fatalf("invalid date should become null, got %q", *got[1].Date)
	}
}

func TestParseEventsLineFallback(t *testing.T) {
	got := ParseEvents("- 1969-07-20 Moon landing: Apollo 11 lands\n* Undated thing")
	if len(got) != 2 {
		t.Fatalf("len: want=2 got=%d", len(got))
	}
	if got[0].Date == nil || *got[0].Date != "1969-07-20" || got[0].Title != "Moon landing" || got[0].Desc != "Apollo 11 lands" {
		t.Fatalf("first line parsed wrong: %+v", got[0])
	}
	if got[1].Date != nil || got[1].Title != "Undated thing" {
		t.Fatalf("second line parsed wrong: %+v", got[1])
	}
}

func TestMergeDedupesAndSortsByPaddedDate(t *testing.T) {
	perPage := []PageEvents{
		{Page: 2, Events: []Event{
			{Date: nil, Title: "Aftermath"},
			{Date: strp("1914"), Title: "War"},
		}},
		{Page: 1, Events: []Event{
			{Date: strp("1914-12-01"), Title: "Truce"},
			{Date: strp("1914"), Title: "war"},
			{Date: strp("1914-06"), Title: "Assassination"},
		}},
	}
	got := Merge(perPage)
	order := []string{"Assassination", "Truce", "War", "Aftermath"}
	if len(got) != len(order) {
		t.Fatalf("len: want=%d got=%d", len(order), len(got))
	}
	for i, title := range order {
		if got[i].Title != title {
			t.Fatalf("pos %d: want=%s got=%s", i, title, got[i].Title)
		}
	}
	if pages := got[2].Pages; len(pages) != 2 || pages[0] != 1 || pages[1] != 2 {
		t.Fatalf("War pages: %v", pages)
	}
}

func TestMergeCollectsPagesCaseInsensitively(t *testing.T) {
	got := Merge([]PageEvents{
		{Page: 3, Events: []Event{{Date: strp("1800"), Title: "Treaty"}}},
		{Page: 1, Events: []Event{{Date: strp("1800"), Title: "TREATY"}}},
	})
	if len(got) != 1 || len(got[0].Pages) != 2 || got[0].Pages[0] != 1 {
		t.Fatalf("merge pages: %+v", got)
	}
}

func TestServiceExtractAndResults(t *testing.T) {
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	chat := toolstest.Reply("```json\n[{\"date\":\"2001\",\"title\":\"Launch\",\"desc\":\"x\"}]\n```")
	svc := New(tools.Base{LLM: chat, Prompts: cat})

	res, err := svc.AnalyzePage(context.Background(), tools.PageInput{Number: 1, Text: "In 2001 it launched."})
	if err != nil {
		t.Fatalf("AnalyzePage: %v", err)
	}
	b, _ := json.Marshal(res)

	if _, err := svc.AnalyzePage(context.Background(), tools.PageInput{Number: 2, Text: "   "}); err != nil {
		t.Fatalf("blank page: %v", err)
	}
	if chat.Calls() != 1 {
		t.Fatalf("blank page should not call the model, calls=%d", chat.Calls())
	}

	out, err := svc.Results(context.Background(), "f1", []tools.Page{{Number: 1, Result: b}, {Number: 2}}, tools.Options{})
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	merged := out["merged"].([]MergedEvent)
	if len(merged) != 1 || merged[0].Title != "Launch" {
		t.Fatalf("merged: %+v", merged)
	}
	if pp := out["per_page"].([]PageEvents); len(pp) != 2 || len(pp[1].Events) != 0 {
		t.Fatalf("per_page: %+v", pp)
	}
}
