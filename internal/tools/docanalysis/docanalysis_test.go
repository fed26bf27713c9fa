package docanalysis

import (
	"context"
	"strings"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/tools"
	"github.com/yungbote/scoolish-backend/internal/tools/prompts"
	"github.com/yungbote/scoolish-backend/internal/tools/toolstest"
)

func TestMeasure(t *testing.T) {
	got := Measure("one two three")
	if got.Words != 3 || got.Chars != 13 || got.ApproxTokens != 3 {
		t.Fatalf("measure: %+v", got)
	}
}

func TestParseMapsUnknownEntityTypes(t *testing.T) {
	got := Parse(`{"tags":["ai","nlp"],"entities":[{"text":"OpenAI","type":"org"},{"text":"Mars","type":"PLANET"},{"text":"","type":"ORG"}]}`, "some text")
	if len(got.Tags) != 2 || len(got.Entities) != 2 {
		t.Fatalf("parse: %+v", got)
	}
	if got.Entities[0].Type != "ORG" || got.Entities[1].Type != "MISC" {
		t.Fatalf("types: %+v", got.Entities)
	}
}

func TestParseFallsBackToFrequentWords(t *testing.T) {
	text := "Photosynthesis happens in chloroplasts. Photosynthesis needs light. Chloroplasts are green. Photosynthesis!"
	got := Parse("no json here", text)
	if len(got.Tags) < 2 || got.Tags[0] != "photosynthesis" || got.Tags[1] != "chloroplasts" {
		t.Fatalf("fallback tags: %v", got.Tags)
	}
	if len(got.Entities) != 0 {
		t.Fatalf("fallback should have no entities")
	}
}

func TestAggregate(t *testing.T) {
	got := Aggregate([]PageAnalysis{
		{Page: 1, Analysis: Analysis{
			Tags:     []string{"Energy", "atoms"},
			Entities: []Entity{{Text: "Curie", Type: "PERSON"}, {Text: "Paris", Type: "GPE"}},
			Length:   Length{Chars: 10, Words: 2, ApproxTokens: 2},
		}},
		{Page: 2, Analysis: Analysis{
			Tags:     []string{"energy"},
			Entities: []Entity{{Text: "curie", Type: "PERSON"}, {Text: "Bohr", Type: "PERSON"}},
			Length:   Length{Chars: 5, Words: 1, ApproxTokens: 1},
		}},
	})
	if got.Totals.Pages != 2 || got.Totals.Words != 3 || got.Totals.Chars != 15 {
		t.Fatalf("totals: %+v", got.Totals)
	}
	if got.TopTags[0].Tag != "Energy" || got.TopTags[0].Count != 2 || len(got.TopTags[0].Pages) != 2 {
		t.Fatalf("top tags: %+v", got.TopTags)
	}
	people := got.EntitiesByType["PERSON"]
	if len(people) != 2 || people[0].Text != "Curie" || people[0].Count != 2 || people[1].Text != "Bohr" {
		t.Fatalf("people: %+v", people)
	}
}

func TestParseMindMapLimits(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"nodes":["A",{"id":"B"},{"x":1}`)
	for i := 0; i < 30; i++ {
		b.WriteString(`,"n"`)
	}
	b.WriteString(`],"edges":[{"source":"A","target":"B","label":"` + strings.Repeat("l", 60) + `"},{"source":"A"}]}`)
	got := ParseMindMap(b.String())
	if len(got.Nodes) != 20 || got.Nodes[1].ID != "B" {
		t.Fatalf("nodes: %d %+v", len(got.Nodes), got.Nodes[:2])
	}
	if len(got.Edges) != 1 || len(got.Edges[0].Label) != 48 {
		t.Fatalf("edges: %+v", got.Edges)
	}
	if empty := ParseMindMap("nothing"); len(empty.Nodes) != 0 || empty.Edges == nil {
		t.Fatalf("invalid reply should give empty map: %+v", empty)
	}
}

func TestResultsBuildsMindMapOnRequest(t *testing.T) {
	cat, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	chat := toolstest.Reply(`{"nodes":[{"id":"Cells"}],"edges":[]}`)
	svc := New(tools.Base{LLM: chat, Prompts: cat})
	pages := []tools.Page{{Number: 1, Text: "Cells divide."}}

	out, err := svc.Results(context.Background(), "f", pages, tools.Options{})
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if _, ok := out["mind_map"]; ok || chat.Calls() != 0 {
		t.Fatalf("mind map should be opt-in")
	}
	out, err = svc.Results(context.Background(), "f", pages, tools.Options{MindMap: true})
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if mm := out["mind_map"].(MindMap); len(mm.Nodes) != 1 {
		t.Fatalf("mind map: %+v", mm)
	}
}
