package creative

import (
	"reflect"
	"testing"
)

func TestCleanTags(t *testing.T) {
	got := CleanTags([]string{"Sci Fi", "sci-fi", "  Space!!  Opera ", "", "a", "b", "c", "d", "e"})
	want := []string{"sci-fi", "space-opera", "a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
}

func TestParsePrompts(t *testing.T) {
	got := ParsePrompts(`[{"prompt":"Write a letter from the moon","genre":"fantasy","tone":null,"tags":["Moon"]}]`)
	if len(got) != 1 || got[0].Genre == nil || *got[0].Genre != "fantasy" || got[0].Tone != nil {
		t.Fatalf("json: %+v", got)
	}
	lines := ParsePrompts("- Describe a storm\n- Imagine a city")
	if len(lines) != 2 || lines[1].Prompt != "Imagine a city" || len(lines[1].Tags) != 0 {
		t.Fatalf("fallback: %+v", lines)
	}
}

func TestMergeDedupesAndSorts(t *testing.T) {
	got := Merge([]PagePrompts{
		{Page: 2, Prompts: []Prompt{{Prompt: "Write a poem"}, {Prompt: "Draw a map"}}},
		{Page: 1, Prompts: []Prompt{{Prompt: "write a POEM"}}},
	})
	if len(got) != 2 || got[0].Prompt.Prompt != "Draw a map" {
		t.Fatalf("order: %+v", got)
	}
	if !reflect.DeepEqual(got[1].Pages, []int{1, 2}) {
		t.Fatalf("pages: %v", got[1].Pages)
	}
}
